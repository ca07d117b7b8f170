package core

import "context"

// OpenHandle is one open file handle on the server, as reported by the
// enumerator at the instant of the snapshot. Handle ids are assigned by
// the server and may be reused after a close; callers must not cache
// them across listing fetches.
type OpenHandle struct {
	ID         string
	RemoteHost string // resolved client hostname (falls back to the address)
	RemoteAddr string // raw client address
	User       string
	Path       string
}

// HandleRegistry is the port to the external open-file enumerator and
// terminator. List returns a fresh snapshot on every call; Close closes
// a single handle by id. A failed close is a recoverable condition, the
// handle may simply be gone already.
type HandleRegistry interface {
	List(ctx context.Context) ([]OpenHandle, error)
	Close(ctx context.Context, id string) error
}
