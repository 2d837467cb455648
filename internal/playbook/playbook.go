// Package playbook runs the tasks of a playbook file in order.
package playbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// Module is implemented by every task module.
type Module interface {
	Run(ctx context.Context, task types.TaskDefinition) types.ModuleResult
}

// Load reads and parses a playbook file.
func Load(path string) (*types.Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}
	var pb types.Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to parse playbook: %w", err)
	}
	return &pb, nil
}

// Runner executes playbook tasks through a module registry.
type Runner struct {
	Modules map[string]Module
	Log     zerolog.Logger
	// Out receives one JSON result per task.
	Out io.Writer
}

// Run executes tasks sequentially and stops at the first failed task.
func (r *Runner) Run(ctx context.Context, pb *types.Playbook) error {
	enc := json.NewEncoder(r.Out)
	for i, t := range pb.Tasks {
		log := r.Log.With().Int("task", i).Str("name", t.Name).Str("module", t.Module).Logger()
		mod, ok := r.Modules[t.Module]
		if !ok {
			return fmt.Errorf("task %d (%s): unknown module %q", i, t.Name, t.Module)
		}
		log.Info().Msg("running task")
		res := mod.Run(ctx, t)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if res.Failed {
			log.Error().Str("msg", res.Msg).Msg("task failed")
			return fmt.Errorf("task %d (%s) failed: %s", i, t.Name, res.Msg)
		}
	}
	return nil
}
