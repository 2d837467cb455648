// Package ipmi drives power, boot device and raw commands against a board
// management controller through the external ipmitool binary.
package ipmi

import (
	"strconv"

	"github.com/eniac111/plumbops-ipmi/internal/creds"
	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// PasswordEnv is the variable ipmitool reads the password from when run with -E.
const PasswordEnv = "IPMI_PASSWORD"

// Default transport retry settings.
const (
	DefaultRetryInterval = 5
	DefaultRetryMax      = 12
)

// Invocation is the argument list for one ipmitool call together with the
// environment overlay it must run with. The overlay is applied to that
// subprocess only.
type Invocation struct {
	Args []string
	Env  []string
}

// With returns a copy of inv with args appended. inv itself is not modified.
func (inv Invocation) With(args ...string) Invocation {
	out := Invocation{
		Args: make([]string, 0, len(inv.Args)+len(args)),
		Env:  append([]string(nil), inv.Env...),
	}
	out.Args = append(out.Args, inv.Args...)
	out.Args = append(out.Args, args...)
	return out
}

// BuildTarget returns the base invocation for a node: lanplus interface,
// password from the environment, transport retries, user and address, then
// the node's extras in order.
func BuildTarget(c types.NodeCredential, retryInterval, retryMax int) Invocation {
	args := []string{
		"-I", "lanplus",
		"-E",
		"-N", strconv.Itoa(retryInterval),
		"-R", strconv.Itoa(retryMax),
		"-U", c.User,
		"-H", c.Address,
	}
	args = append(args, creds.SplitExtras(c.Extras)...)
	return Invocation{
		Args: args,
		Env:  []string{PasswordEnv + "=" + c.Password},
	}
}
