// Package ipmi is the automation module that issues one IPMI action per
// task against a node named in a credentials file.
package ipmi

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/eniac111/plumbops-ipmi/internal/creds"
	core "github.com/eniac111/plumbops-ipmi/internal/ipmi"
	"github.com/eniac111/plumbops-ipmi/internal/ssh"
	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// IpmiModule runs IPMI tasks.
type IpmiModule struct {
	Log zerolog.Logger

	// Runner overrides the transport. When nil, ipmitool runs locally or,
	// with delegate_to, on the delegate host.
	Runner core.Runner
	// Source overrides where the credentials file is read from.
	Source creds.Source
	// Sleep blocks for the post-success delay. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// streamer is implemented by errors that captured transport output.
type streamer interface {
	Streams() core.Output
}

// Run resolves the node, performs exactly one action and reports it. Every
// error ends up here and becomes a failed result.
func (m IpmiModule) Run(ctx context.Context, task types.TaskDefinition) types.ModuleResult {
	res := types.ModuleResult{
		TaskName: task.Name,
		Module:   task.Module,
	}
	if res.Module == "" {
		res.Module = "ipmi"
	}

	p, err := decodeParams(task.Params)
	if err != nil {
		return failResult(res, err)
	}
	log := m.Log.With().Str("node", p.Name).Logger()

	action, err := core.SelectAction(p.Power, p.Bootdev, p.Options, p.Passthru)
	if err != nil {
		return failResult(res, err)
	}

	runner, source, closeFn, err := m.transport(p, log)
	if err != nil {
		return failResult(res, err)
	}
	defer closeFn()

	cred, err := creds.Resolve(source, p.CredsFile, p.Name)
	if err != nil {
		return failResult(res, err)
	}
	inv := core.BuildTarget(cred, p.RetryInterval, p.RetryMax)

	out, err := core.NewDispatcher(runner, log).Dispatch(ctx, inv, action)
	if err != nil {
		return failResult(res, err)
	}
	log.Info().Stringer("result", out).Msg("ipmi action done")

	if p.Sleep > 0 {
		log.Debug().Dur("sleep", p.Sleep).Msg("sleeping after success")
		sleep := m.Sleep
		if sleep == nil {
			sleep = time.Sleep
		}
		sleep(p.Sleep)
	}
	return report(res, out)
}

// transport picks the runner and credentials source: injected ones first,
// then a delegate connection, then the local machine.
func (m IpmiModule) transport(p params, log zerolog.Logger) (core.Runner, creds.Source, func(), error) {
	runner, source := m.Runner, m.Source
	noop := func() {}
	if p.Delegate == nil || (runner != nil && source != nil) {
		if runner == nil {
			runner = core.ExecRunner{Path: p.Ipmitool}
		}
		if source == nil {
			source = creds.LocalSource{}
		}
		return runner, source, noop, nil
	}

	client, err := ssh.Connect(*p.Delegate, log)
	if err != nil {
		return nil, nil, noop, err
	}
	if runner == nil {
		runner = &ssh.Runner{Client: client.Client, Path: p.Ipmitool, Log: log}
	}
	if source == nil {
		source = ssh.SFTPSource{Client: client.Client}
	}
	return runner, source, func() { _ = client.Close() }, nil
}

func report(res types.ModuleResult, r core.Result) types.ModuleResult {
	switch r.Kind {
	case core.ActionPower:
		res.Power = r.Power
		res.Msg = "power " + r.Power
	case core.ActionBootDevice:
		res.Bootdev = r.Bootdev
		res.Options = r.Options
		res.Msg = "boot device set to " + r.Bootdev
	case core.ActionPassthru:
		res.Rc = types.Int(r.Output.Rc)
		res.Stdout = r.Output.Stdout
		res.Stderr = r.Output.Stderr
	}
	if r.HasChanged() {
		res.Changed = types.Bool(r.Changed)
	}
	return res
}

// failResult marks res failed with a prefixed message and any captured
// transport output.
func failResult(res types.ModuleResult, err error) types.ModuleResult {
	res.Failed = true
	res.Msg = "ipmi: " + err.Error()
	var s streamer
	if errors.As(err, &s) {
		out := s.Streams()
		res.Rc = types.Int(out.Rc)
		res.Stdout = out.Stdout
		res.Stderr = out.Stderr
	}
	return res
}
