package ipmi

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eniac111/plumbops-ipmi/internal/creds"
	core "github.com/eniac111/plumbops-ipmi/internal/ipmi"
	"github.com/eniac111/plumbops-ipmi/internal/types"
)

const credsYAML = `servers:
  - id: rabbit02
    ilo-ip: 10.0.0.2
    ilo-user: root
    ilo-password: hunter2
  - id: blade7
    ilo-ip: 10.0.0.50
    ilo-user: admin
    ilo-password: pw
    ilo-extras: "-b 7 -t 0x72"
`

type fakeRunner struct {
	replies []core.Output
	calls   [][]string
	env     [][]string
}

func (f *fakeRunner) Run(_ context.Context, inv core.Invocation) (core.Output, error) {
	f.calls = append(f.calls, inv.Args)
	f.env = append(f.env, inv.Env)
	if len(f.calls) > len(f.replies) {
		return core.Output{}, errors.New("unexpected call")
	}
	return f.replies[len(f.calls)-1], nil
}

func setup(t *testing.T, replies ...core.Output) (IpmiModule, *fakeRunner, *[]time.Duration, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.yaml")
	if err := os.WriteFile(path, []byte(credsYAML), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}
	r := &fakeRunner{replies: replies}
	var slept []time.Duration
	m := IpmiModule{
		Log:    zerolog.Nop(),
		Runner: r,
		Sleep:  func(d time.Duration) { slept = append(slept, d) },
	}
	return m, r, &slept, path
}

func task(params map[string]interface{}) types.TaskDefinition {
	return types.TaskDefinition{Name: "test", Module: "ipmi", Params: params}
}

func TestParseSleep(t *testing.T) {
	cases := map[string]time.Duration{
		"2":    2 * time.Second,
		"2.5":  2500 * time.Millisecond,
		"1m":   time.Minute,
		"0.5m": 30 * time.Second,
		"0":    0,
	}
	for in, want := range cases {
		got, err := ParseSleep(in)
		if err != nil {
			t.Fatalf("ParseSleep(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseSleep(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "m", "abc", "-1", "1h", "NaN"} {
		if _, err := ParseSleep(bad); err == nil {
			t.Fatalf("ParseSleep(%q) expected error", bad)
		}
	}
}

func TestPowerCycle(t *testing.T) {
	m, r, _, path := setup(t,
		core.Output{Stdout: "Chassis Power is on\n"},
		core.Output{Stdout: "Chassis Power Control: Cycle\n"},
	)
	res := m.Run(context.Background(), task(map[string]interface{}{
		"credsfile": path, "name": "rabbit02", "power": "cycle",
	}))
	if res.Failed {
		t.Fatalf("failed: %s", res.Msg)
	}
	if res.Power != "cycle" || res.Changed == nil || !*res.Changed {
		t.Fatalf("result = %+v", res)
	}
	if len(r.calls) != 2 {
		t.Fatalf("calls = %q", r.calls)
	}
	if r.env[0][0] != "IPMI_PASSWORD=hunter2" {
		t.Fatalf("env = %q", r.env[0])
	}
}

func TestPowerStatusUnchanged(t *testing.T) {
	m, _, slept, path := setup(t, core.Output{Stdout: "Chassis Power Control: Up/On"})
	res := m.Run(context.Background(), task(map[string]interface{}{
		"credsfile": path, "name": "rabbit02", "power": "status", "sleep": "0.5m",
	}))
	if res.Failed || res.Power != "on" || res.Changed == nil || *res.Changed {
		t.Fatalf("result = %+v", res)
	}
	if len(*slept) != 1 || (*slept)[0] != 30*time.Second {
		t.Fatalf("slept = %v", *slept)
	}
}

func TestBootdevWithOptions(t *testing.T) {
	m, r, _, path := setup(t, core.Output{Stdout: "Set Boot Device to pxe\n"})
	res := m.Run(context.Background(), task(map[string]interface{}{
		"credsfile": path, "name": "blade7", "bootdev": "pxe", "options": "persistent",
		"retry_interval": 2, "retry_max": "3",
	}))
	if res.Failed {
		t.Fatalf("failed: %s", res.Msg)
	}
	if res.Bootdev != "pxe" || res.Options != "persistent" || res.Changed == nil || !*res.Changed {
		t.Fatalf("result = %+v", res)
	}
	got := strings.Join(r.calls[0], " ")
	want := "-I lanplus -E -N 2 -R 3 -U admin -H 10.0.0.50 -b 7 -t 0x72 chassis bootdev pxe options=persistent"
	if got != want {
		t.Fatalf("args = %s", got)
	}
}

func TestPassthruOmitsChanged(t *testing.T) {
	m, _, _, path := setup(t, core.Output{Stdout: "Sent cold reset command to MC\n"})
	res := m.Run(context.Background(), task(map[string]interface{}{
		"credsfile": path, "name": "rabbit02", "passthru": "mc reset cold",
	}))
	if res.Failed {
		t.Fatalf("failed: %s", res.Msg)
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := payload["changed"]; ok {
		t.Fatalf("passthru payload has changed: %s", data)
	}
	if payload["rc"] != float64(0) || payload["stdout"] != "Sent cold reset command to MC\n" {
		t.Fatalf("payload = %s", data)
	}
}

func TestNodeNotFoundBeforeTransport(t *testing.T) {
	m, r, slept, path := setup(t)
	res := m.Run(context.Background(), task(map[string]interface{}{
		"credsfile": path, "name": "ghost", "power": "on", "sleep": "2",
	}))
	if !res.Failed || !strings.HasPrefix(res.Msg, "ipmi: ") || !strings.Contains(res.Msg, "ghost") {
		t.Fatalf("result = %+v", res)
	}
	if len(r.calls) != 0 {
		t.Fatalf("transport used for unknown node: %q", r.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("slept after failure")
	}
}

func TestTransportFailureCarriesStreams(t *testing.T) {
	m, _, slept, path := setup(t, core.Output{Rc: 1, Stderr: "Unable to establish IPMI v2 / RMCP+ session\n"})
	res := m.Run(context.Background(), task(map[string]interface{}{
		"credsfile": path, "name": "rabbit02", "passthru": "mc info", "sleep": "1",
	}))
	if !res.Failed || res.Rc == nil || *res.Rc != 1 || !strings.Contains(res.Stderr, "RMCP+") {
		t.Fatalf("result = %+v", res)
	}
	if len(*slept) != 0 {
		t.Fatalf("slept after failure")
	}
}

func TestParameterErrors(t *testing.T) {
	m, r, _, path := setup(t)
	cases := []map[string]interface{}{
		{"name": "rabbit02", "power": "on"},
		{"credsfile": path, "power": "on"},
		{"credsfile": path, "name": "rabbit02"},
		{"credsfile": path, "name": "rabbit02", "power": "on", "bootdev": "pxe"},
		{"credsfile": path, "name": "rabbit02", "power": "on", "retry_interval": "soon"},
		{"credsfile": path, "name": "rabbit02", "power": "on", "sleep": "later"},
		{"credsfile": path, "name": "rabbit02", "power": "on", "retry_max": 1.5},
		{"credsfile": path, "name": "rabbit02", "power": []string{"on"}},
	}
	for _, p := range cases {
		res := m.Run(context.Background(), task(p))
		if !res.Failed || !strings.HasPrefix(res.Msg, "ipmi: ") {
			t.Errorf("%v: result = %+v", p, res)
		}
	}
	if len(r.calls) != 0 {
		t.Fatalf("transport used on invalid parameters: %q", r.calls)
	}
}

func TestIncompleteCredentialNeverReachesTransport(t *testing.T) {
	m, r, _, _ := setup(t)
	path := filepath.Join(t.TempDir(), "half.yaml")
	if err := os.WriteFile(path, []byte("servers: [{id: half, ilo-user: root}]\n"), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}
	res := m.Run(context.Background(), task(map[string]interface{}{
		"credsfile": path, "name": "half", "power": "status",
	}))
	if !res.Failed || !strings.Contains(res.Msg, "ilo-ip") {
		t.Fatalf("result = %+v", res)
	}
	if len(r.calls) != 0 {
		t.Fatalf("transport used with blank address: %q", r.calls)
	}
}

func TestDecodeParamsDelegate(t *testing.T) {
	base := func(extra map[string]interface{}) map[string]interface{} {
		p := map[string]interface{}{"credsfile": "creds.yaml", "name": "rabbit02", "power": "on"}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}

	p, err := decodeParams(base(nil))
	if err != nil || p.Delegate != nil {
		t.Fatalf("no delegate expected: %+v, %v", p.Delegate, err)
	}

	p, err = decodeParams(base(map[string]interface{}{
		"delegate_to":       "mgmt1",
		"delegate_user":     "ops",
		"delegate_port":     json.Number("2222"),
		"delegate_key":      "/keys/id_ed25519",
		"delegate_insecure": "true",
	}))
	if err != nil {
		t.Fatalf("decodeParams: %v", err)
	}
	want := types.Host{Name: "mgmt1", User: "ops", Port: 2222, KeyPath: "/keys/id_ed25519", Insecure: true}
	if p.Delegate == nil || *p.Delegate != want {
		t.Fatalf("delegate = %+v", p.Delegate)
	}

	p, err = decodeParams(base(map[string]interface{}{"delegate_to": "mgmt1"}))
	if err != nil {
		t.Fatalf("decodeParams: %v", err)
	}
	if p.Delegate.User == "" || p.Delegate.User != currentUser() {
		t.Fatalf("delegate user = %q, want current user %q", p.Delegate.User, currentUser())
	}
	if p.Delegate.Port != 22 || p.Delegate.Insecure {
		t.Fatalf("delegate defaults = %+v", p.Delegate)
	}

	for _, bad := range []map[string]interface{}{
		{"delegate_to": "mgmt1", "delegate_port": "ssh"},
		{"delegate_to": "mgmt1", "delegate_insecure": "maybe"},
		{"delegate_to": "mgmt1", "delegate_port": json.Number("22.5")},
	} {
		if _, err := decodeParams(base(bad)); err == nil {
			t.Fatalf("%v: expected error", bad)
		}
	}
}

func TestDecodeParamsJSONNumbers(t *testing.T) {
	p, err := decodeParams(map[string]interface{}{
		"credsfile": "creds.yaml", "name": "rabbit02", "power": "on",
		"retry_interval": json.Number("2"), "retry_max": json.Number("4"), "sleep": json.Number("1.5"),
	})
	if err != nil {
		t.Fatalf("decodeParams: %v", err)
	}
	if p.RetryInterval != 2 || p.RetryMax != 4 || p.Sleep != 1500*time.Millisecond {
		t.Fatalf("params = %+v", p)
	}
}

func TestTransportPrefersInjected(t *testing.T) {
	r := &fakeRunner{}
	m := IpmiModule{Log: zerolog.Nop(), Runner: r, Source: staticSource{}}

	// Both overrides set: a delegate is never dialled.
	runner, source, closeFn, err := m.transport(params{Delegate: &types.Host{Name: "unreachable.invalid"}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	defer closeFn()
	if runner != r || source != (staticSource{}) {
		t.Fatalf("runner/source not the injected ones")
	}

	runner, source, _, err = IpmiModule{Log: zerolog.Nop()}.transport(params{Ipmitool: "/opt/ipmitool"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	if er, ok := runner.(core.ExecRunner); !ok || er.Path != "/opt/ipmitool" {
		t.Fatalf("runner = %#v", runner)
	}
	if _, ok := source.(creds.LocalSource); !ok {
		t.Fatalf("source = %#v", source)
	}
}

type staticSource struct{}

func (staticSource) ReadFile(string) ([]byte, error) { return []byte(credsYAML), nil }

func TestParseSleepOverflow(t *testing.T) {
	for _, huge := range []string{"1e12m", "1e300", "9223372037"} {
		if _, err := ParseSleep(huge); err == nil {
			t.Fatalf("ParseSleep(%q) expected range error", huge)
		}
	}
}
