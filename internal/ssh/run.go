package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/eniac111/plumbops-ipmi/internal/ipmi"
)

// RunCommand executes a command on the remote host, feeding stdin to it.
// A non-zero remote exit status is returned as rc with a nil error.
func RunCommand(client *ssh.Client, cmd string, stdin string) (rc int, stdout, stderr string, err error) {
	session, err := client.NewSession()
	if err != nil {
		return 0, "", "", err
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf
	session.Stdin = strings.NewReader(stdin)

	err = session.Run(cmd)
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), outBuf.String(), errBuf.String(), nil
		}
		return 0, outBuf.String(), errBuf.String(), err
	}
	return 0, outBuf.String(), errBuf.String(), nil
}

// Runner runs transport invocations on a delegate host. The environment
// overlay travels over stdin and is exported only inside the remote shell
// that execs the binary, so secrets never appear on a command line.
type Runner struct {
	Client *ssh.Client
	// Path of the remote binary, "ipmitool" when empty.
	Path string
	Log  zerolog.Logger
}

// Run implements ipmi.Runner.
func (r *Runner) Run(ctx context.Context, inv ipmi.Invocation) (ipmi.Output, error) {
	if err := ctx.Err(); err != nil {
		return ipmi.Output{}, err
	}
	path := r.Path
	if path == "" {
		path = "ipmitool"
	}
	script, stdin, err := RemoteScript(path, inv)
	if err != nil {
		return ipmi.Output{}, err
	}
	r.Log.Debug().Str("host", r.Client.RemoteAddr().String()).Strs("args", inv.Args).Msg("running on delegate")
	rc, stdout, stderr, err := RunCommand(r.Client, script, stdin)
	if err != nil {
		return ipmi.Output{Stdout: stdout, Stderr: stderr}, fmt.Errorf("run %s on delegate: %w", path, err)
	}
	return ipmi.Output{Rc: rc, Stdout: stdout, Stderr: stderr}, nil
}

// RemoteScript builds the shell command for a delegated invocation and the
// stdin that feeds its environment overlay, one value per line.
func RemoteScript(path string, inv ipmi.Invocation) (script, stdin string, err error) {
	var b strings.Builder
	var in strings.Builder
	for _, kv := range inv.Env {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !validEnvName(name) {
			return "", "", fmt.Errorf("invalid environment entry %q", name)
		}
		if strings.ContainsAny(value, "\n\r") {
			return "", "", fmt.Errorf("environment value for %s contains a newline", name)
		}
		fmt.Fprintf(&b, "IFS= read -r %s; export %s; ", name, name)
		in.WriteString(value)
		in.WriteByte('\n')
	}
	b.WriteString("exec ")
	b.WriteString(Quote(path))
	for _, a := range inv.Args {
		b.WriteByte(' ')
		b.WriteString(Quote(a))
	}
	return b.String(), in.String(), nil
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func validEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
