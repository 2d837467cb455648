package shell

import (
	"context"

	"github.com/eniac111/plumbops-ipmi/internal/ipmi"
	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// ShellModule runs a shell command through the same transport abstraction
// as the IPMI module, so it can be pointed at a delegate host.
type ShellModule struct {
	// Runner defaults to a local "sh".
	Runner ipmi.Runner
}

func (sm ShellModule) Run(ctx context.Context, task types.TaskDefinition) types.ModuleResult {
	res := types.ModuleResult{
		TaskName: task.Name,
		Module:   task.Module,
	}

	cmdString, ok := task.Params["cmd"].(string)
	if !ok || cmdString == "" {
		res.Failed = true
		res.Msg = "Missing 'cmd' parameter for shell module"
		return res
	}

	runner := sm.Runner
	if runner == nil {
		runner = ipmi.ExecRunner{Path: "sh"}
	}
	out, err := runner.Run(ctx, ipmi.Invocation{Args: []string{"-c", cmdString}})
	if err != nil {
		res.Failed = true
		res.Msg = "Command failed: " + err.Error()
		return res
	}
	res.Rc = types.Int(out.Rc)
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr
	if out.Rc != 0 {
		res.Failed = true
		res.Msg = "Command failed: " + out.Stderr
		return res
	}

	// A command has no state to compare, so a successful run counts as a change
	res.Changed = types.Bool(true)
	return res
}
