// Package smb implements core.HandleRegistry on top of the Windows
// SMB server cmdlets. The structured JSON emitted by ConvertTo-Json is
// the contract surface with the external tool; a schema change there is
// a breaking change for this package.
package smb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/OlsenSM91/Open-Server-Shares/internal/core"
)

// ErrMalformedOutput is returned when the enumerator's output cannot be
// parsed at all. Individual bad records are dropped, not fatal.
var ErrMalformedOutput = errors.New("enumerator output is not valid JSON")

// ErrInvalidHandleID is returned before any command runs when the
// submitted id is not a plain number.
var ErrInvalidHandleID = errors.New("handle id must be numeric")

// CloseError reports a failed close for a single handle. The handle may
// already be gone, which is a benign race; callers surface the message
// and let the operator refresh the listing.
type CloseError struct {
	HandleID string
	Err      error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("failed to close handle %s: %v", e.HandleID, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }

// listScript mirrors the Get-SmbOpenFile pipeline the console has
// always used, including the reverse-DNS hostname enrichment.
const listScript = `
$openFiles = Get-SmbOpenFile | Select-Object -Property ClientComputerName,Path,ClientUserName,FileId
$openFiles | ForEach-Object {
    $hostname = try { [Net.DNS]::GetHostByAddress($_.ClientComputerName).HostName } catch { $_.ClientComputerName }
    [pscustomobject]@{
        Path = $_.Path
        ClientUserName = $_.ClientUserName
        ClientComputerName = $_.ClientComputerName
        Hostname = $hostname
        FileId = $_.FileId
    }
} | ConvertTo-Json
`

// openFileRecord is the wire schema of one enumerator record.
type openFileRecord struct {
	Path               string      `json:"Path"`
	ClientUserName     string      `json:"ClientUserName"`
	ClientComputerName string      `json:"ClientComputerName"`
	Hostname           string      `json:"Hostname"`
	FileID             json.Number `json:"FileId"`
}

// Registry lists and force-closes SMB open files through a Runner.
type Registry struct {
	runner Runner
}

func NewRegistry(runner Runner) *Registry {
	return &Registry{runner: runner}
}

// List returns a fresh snapshot of currently open handles. Records
// missing a FileId or Path are dropped and logged; completely
// unparseable output yields ErrMalformedOutput.
func (r *Registry) List(ctx context.Context) ([]core.OpenHandle, error) {
	out, err := r.runner.Run(ctx, listScript)
	if err != nil {
		return nil, fmt.Errorf("enumerating open files: %w", err)
	}

	records, err := parseRecords(out)
	if err != nil {
		return nil, err
	}

	handles := make([]core.OpenHandle, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if rec.FileID.String() == "" || rec.Path == "" {
			dropped++
			continue
		}
		host := rec.Hostname
		if host == "" {
			host = rec.ClientComputerName
		}
		handles = append(handles, core.OpenHandle{
			ID:         rec.FileID.String(),
			RemoteHost: host,
			RemoteAddr: rec.ClientComputerName,
			User:       rec.ClientUserName,
			Path:       rec.Path,
		})
	}
	if dropped > 0 {
		log.Printf("[SMB] Dropped %d record(s) missing FileId or Path", dropped)
	}
	return handles, nil
}

// parseRecords normalizes the two shapes ConvertTo-Json produces: a
// JSON array for multiple results and a bare object for exactly one.
func parseRecords(out []byte) ([]openFileRecord, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var single openFileRecord
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return []openFileRecord{single}, nil
	}

	var many []openFileRecord
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return many, nil
}

// Close force-closes one handle by id. The -Force flag suppresses the
// cmdlet's interactive confirmation. No retries here; the workflow
// layer re-lists and lets the operator try again.
func (r *Registry) Close(ctx context.Context, id string) error {
	if !isNumericID(id) {
		return &CloseError{HandleID: id, Err: ErrInvalidHandleID}
	}

	script := fmt.Sprintf("Close-SmbOpenFile -FileId %s -Force", id)
	if out, err := r.runner.Run(ctx, script); err != nil {
		return &CloseError{HandleID: id, Err: commandError(err, out)}
	}
	return nil
}

// commandError folds stderr into the error when the runner exposes it,
// without ever passing raw tool output to the HTTP layer. Handlers log
// the full error and render only the handle id to the operator.
func commandError(err error, out []byte) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	if len(bytes.TrimSpace(out)) > 0 {
		return fmt.Errorf("%w: %s", err, bytes.TrimSpace(out))
	}
	return err
}

func isNumericID(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
