package playbook

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eniac111/plumbops-ipmi/internal/types"
)

type recordModule struct {
	ran  []string
	fail string
}

func (m *recordModule) Run(_ context.Context, t types.TaskDefinition) types.ModuleResult {
	m.ran = append(m.ran, t.Name)
	return types.ModuleResult{TaskName: t.Name, Module: t.Module, Failed: t.Name == m.fail, Msg: "done"}
}

const playbookYAML = `tasks:
  - name: pxe
    module: ipmi
    params:
      credsfile: creds.yaml
      name: rabbit02
      bootdev: pxe
  - name: cycle
    module: ipmi
    params:
      credsfile: creds.yaml
      name: rabbit02
      power: cycle
      retry_max: 3
  - name: after
    module: ipmi
`

func load(t *testing.T) *types.Playbook {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	if err := os.WriteFile(path, []byte(playbookYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pb, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return pb
}

func TestLoad(t *testing.T) {
	pb := load(t)
	if len(pb.Tasks) != 3 {
		t.Fatalf("tasks = %d", len(pb.Tasks))
	}
	if pb.Tasks[1].Params["retry_max"] != 3 {
		t.Fatalf("retry_max = %#v", pb.Tasks[1].Params["retry_max"])
	}
}

func TestRunStopsAtFailure(t *testing.T) {
	mod := &recordModule{fail: "cycle"}
	var out bytes.Buffer
	r := &Runner{Modules: map[string]Module{"ipmi": mod}, Log: zerolog.Nop(), Out: &out}
	err := r.Run(context.Background(), load(t))
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err = %v", err)
	}
	if strings.Join(mod.ran, ",") != "pxe,cycle" {
		t.Fatalf("ran = %v", mod.ran)
	}
	if n := strings.Count(out.String(), "\n"); n != 2 {
		t.Fatalf("results written = %d", n)
	}
}

func TestRunUnknownModule(t *testing.T) {
	r := &Runner{Modules: map[string]Module{}, Log: zerolog.Nop(), Out: &bytes.Buffer{}}
	if err := r.Run(context.Background(), load(t)); err == nil {
		t.Fatalf("expected unknown module error")
	}
}
