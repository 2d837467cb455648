package ipmi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Output is what a transport call produced.
type Output struct {
	Rc     int
	Stdout string
	Stderr string
}

// Runner executes one transport invocation. A non-zero exit status is
// reported through Output.Rc; the error is reserved for failures to run
// the command at all.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner runs ipmitool as a local subprocess.
type ExecRunner struct {
	// Path of the binary, "ipmitool" when empty.
	Path string
}

// Run implements Runner. The invocation's environment overlay is appended
// to a copy of the parent environment for this command only.
func (r ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	path := r.Path
	if path == "" {
		path = "ipmitool"
	}
	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.Env = append(os.Environ(), inv.Env...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	out := Output{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.Rc = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("run %s: %w", path, err)
	}
	return out, nil
}
