// Package templates carries the embedded HTML pages and static assets
// for the console UI.
package templates

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed html/*.html
var htmlFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Load parses the embedded pages. Panics on a broken embed, which can
// only happen at build time.
func Load() *template.Template {
	return template.Must(template.ParseFS(htmlFS, "html/*.html"))
}

// StaticFS returns the embedded static assets rooted at static/.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("static assets missing from embed: " + err.Error())
	}
	return http.FS(sub)
}
