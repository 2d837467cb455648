// Command ipmi is an Ansible binary module. Ansible runs it with the path
// of a JSON arguments file and reads one JSON object from stdout.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eniac111/plumbops-ipmi/internal/logging"
	ipmimod "github.com/eniac111/plumbops-ipmi/internal/modules/ipmi"
	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// module is the task module run by this binary.
type module interface {
	Run(ctx context.Context, task types.TaskDefinition) types.ModuleResult
}

func readArgs(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read args file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	args := map[string]interface{}{}
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("parse args file: %w", err)
	}
	for k := range args {
		if strings.HasPrefix(k, "_ansible_") {
			delete(args, k)
		}
	}
	return args, nil
}

// run executes one task and writes its payload to out. The returned exit
// status is non-zero whenever the payload reports a failure.
func run(argv []string, mod module, out io.Writer) int {
	var res types.ModuleResult
	switch {
	case len(argv) < 2:
		res = types.ModuleResult{Module: "ipmi", Failed: true, Msg: "ipmi: no argument file provided"}
	default:
		args, err := readArgs(argv[1])
		if err != nil {
			res = types.ModuleResult{Module: "ipmi", Failed: true, Msg: "ipmi: " + err.Error()}
			break
		}
		name, _ := args["name"].(string)
		res = mod.Run(context.Background(), types.TaskDefinition{
			Name: name, Module: "ipmi", Params: args,
		})
	}

	if err := json.NewEncoder(out).Encode(res); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if res.Failed {
		return 1
	}
	return 0
}

func newLogger() zerolog.Logger {
	level := os.Getenv("PLUMBOPS_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return logging.New(os.Stderr, level, false)
}

func main() {
	os.Exit(run(os.Args, ipmimod.IpmiModule{Log: newLogger()}, os.Stdout))
}
