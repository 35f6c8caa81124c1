// Package runner executes compiled scripts, locally or on a remote host.
// The compiler itself never runs anything; runners are the collaborators
// that hand the generated text to a shell.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Local executes a script with a shell on this machine.
type Local struct {
	// Shell is the interpreter path. Empty means /bin/bash.
	Shell string
	// Stdout and Stderr receive the script's output. Nil means the
	// process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Run writes the script to a per-run temp file, marks it executable and
// runs it. The file is removed afterwards; the run ID names it uniquely so
// concurrent runs never collide.
func (l *Local) Run(ctx context.Context, script string) error {
	shell := l.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	runID := uuid.NewString()
	path := filepath.Join(os.TempDir(), "shellbake-"+runID+".bash")
	if err := os.WriteFile(path, []byte(script), 0700); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	defer os.Remove(path)

	log.Debug().Str("run_id", runID).Str("path", path).Msg("executing script")

	cmd := exec.CommandContext(ctx, shell, path)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run script %s: %w", runID, err)
	}
	return nil
}
