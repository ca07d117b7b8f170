package smb

import (
	"context"
	"os/exec"
	"time"
)

// Runner executes one non-interactive shell invocation and returns its
// combined stdout. The concrete implementation shells out to
// PowerShell; tests substitute a fake so no OS calls are made.
type Runner interface {
	Run(ctx context.Context, script string) ([]byte, error)
}

// PowerShellRunner invokes the platform PowerShell binary with a single
// -Command script. The binary path is configurable so the registry
// works with both Windows PowerShell and pwsh.
type PowerShellRunner struct {
	Path    string
	Timeout time.Duration // per-invocation cap, 0 means no cap
}

func NewPowerShellRunner(path string, timeout time.Duration) *PowerShellRunner {
	if path == "" {
		path = "powershell"
	}
	return &PowerShellRunner{Path: path, Timeout: timeout}
}

func (r *PowerShellRunner) Run(ctx context.Context, script string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, r.Path, "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Output()
}
