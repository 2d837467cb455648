package ipmi

import (
	"fmt"
	"strings"
)

// TransportError reports that ipmitool exited non-zero.
type TransportError struct {
	Args   []string
	Output Output
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("ipmitool %s exited with rc %d", strings.Join(e.Args, " "), e.Output.Rc)
	if s := strings.TrimSpace(e.Output.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Streams returns the captured output of the failed call.
func (e *TransportError) Streams() Output { return e.Output }

// ParseError reports a controller response that could not be reduced to
// the expected token.
type ParseError struct {
	What   string
	Output Output
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s from response %q", e.What, strings.TrimSpace(e.Output.Stdout))
}

// Streams returns the raw output that failed to parse.
func (e *ParseError) Streams() Output { return e.Output }

// UsageError reports an invalid action request.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }
