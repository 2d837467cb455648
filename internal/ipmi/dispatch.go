package ipmi

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Result is the outcome of one dispatched action. Changed is meaningless
// for passthru; HasChanged tells whether it may be reported.
type Result struct {
	Kind ActionKind

	Power   string
	Bootdev string
	Options string

	Changed bool
	Output  Output
}

// HasChanged reports whether the action kind can determine changed-ness.
func (r Result) HasChanged() bool { return r.Kind != ActionPassthru }

// Dispatcher runs one action against a target.
type Dispatcher struct {
	Runner Runner
	Log    zerolog.Logger
}

// NewDispatcher returns a Dispatcher using r as transport.
func NewDispatcher(r Runner, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{Runner: r, Log: log}
}

// Dispatch executes a against the target inv. Any non-zero transport exit
// aborts the action with a TransportError; no retry happens here.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation, a Action) (Result, error) {
	switch a.Kind {
	case ActionBootDevice:
		return d.bootdev(ctx, inv, a)
	case ActionPower:
		return d.power(ctx, inv, a)
	case ActionPassthru:
		return d.passthru(ctx, inv, a)
	default:
		return Result{}, &UsageError{Msg: "one of power, bootdev or passthru is required"}
	}
}

func (d *Dispatcher) call(ctx context.Context, inv Invocation, args ...string) (Output, error) {
	call := inv.With(args...)
	d.Log.Debug().Strs("args", call.Args).Msg("running ipmitool")
	out, err := d.Runner.Run(ctx, call)
	if err != nil {
		return out, err
	}
	if out.Rc != 0 {
		return out, &TransportError{Args: args, Output: out}
	}
	return out, nil
}

func (d *Dispatcher) power(ctx context.Context, inv Invocation, a Action) (Result, error) {
	out, err := d.call(ctx, inv, "power", "status")
	if err != nil {
		return Result{}, err
	}
	before := ParsePowerState(out.Stdout)
	if before == "" {
		return Result{}, &ParseError{What: "power state", Output: out}
	}

	after := before
	if a.Power != "status" && a.Power != before {
		out, err = d.call(ctx, inv, "power", a.Power)
		if err != nil {
			return Result{}, err
		}
		after = ParsePowerState(out.Stdout)
		if after == "" {
			return Result{}, &ParseError{What: "power state", Output: out}
		}
	}
	d.Log.Info().Str("before", before).Str("after", after).Str("requested", a.Power).Msg("power")
	return Result{
		Kind:    ActionPower,
		Power:   after,
		Changed: before != after,
		Output:  out,
	}, nil
}

func (d *Dispatcher) bootdev(ctx context.Context, inv Invocation, a Action) (Result, error) {
	args := []string{"chassis", "bootdev", a.Device}
	if a.Options != "" {
		args = append(args, "options="+a.Options)
	}
	out, err := d.call(ctx, inv, args...)
	if err != nil {
		return Result{}, err
	}
	dev := ParseBootDevice(out.Stdout)
	if dev == "" {
		return Result{}, &ParseError{What: "boot device", Output: out}
	}
	d.Log.Info().Str("bootdev", dev).Str("options", a.Options).Msg("boot device set")
	// The current boot device cannot be read back, so a set is always a change.
	return Result{
		Kind:    ActionBootDevice,
		Bootdev: dev,
		Options: a.Options,
		Changed: true,
		Output:  out,
	}, nil
}

func (d *Dispatcher) passthru(ctx context.Context, inv Invocation, a Action) (Result, error) {
	args := strings.Fields(a.Raw)
	out, err := d.call(ctx, inv, args...)
	if err != nil {
		return Result{}, err
	}
	d.Log.Info().Str("command", a.Raw).Msg("passthru")
	return Result{Kind: ActionPassthru, Output: out}, nil
}

// String renders a short summary, used in log lines and messages.
func (r Result) String() string {
	switch r.Kind {
	case ActionPower:
		return fmt.Sprintf("power %s (changed=%t)", r.Power, r.Changed)
	case ActionBootDevice:
		return fmt.Sprintf("bootdev %s (changed=%t)", r.Bootdev, r.Changed)
	default:
		return fmt.Sprintf("%s rc=%d", r.Kind, r.Output.Rc)
	}
}
