package types

// CredentialsFile is the document the credential resolver reads. YAML and
// JSON encodings share the same structure.
type CredentialsFile struct {
	Servers []NodeCredential `yaml:"servers" json:"servers"`
}

// NodeCredential is one entry of a credentials file.
type NodeCredential struct {
	ID       string `yaml:"id"                     json:"id"`
	Address  string `yaml:"ilo-ip"                 json:"ilo-ip"`
	User     string `yaml:"ilo-user"               json:"ilo-user"`
	Password string `yaml:"ilo-password"           json:"ilo-password"`
	// Extras holds space-separated arguments for devices sharing one
	// controller address, e.g. "-b 7 -t 0x72".
	Extras string `yaml:"ilo-extras,omitempty" json:"ilo-extras,omitempty"`
}

// Host is a machine reachable over SSH, used as a delegate for transport calls.
type Host struct {
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"` // Optional SSH key path
	// Insecure skips host key verification against known_hosts.
	Insecure bool `yaml:"insecure,omitempty"`
}

// Playbook holds a list of tasks.
type Playbook struct {
	Tasks []TaskDefinition `yaml:"tasks"`
}

// TaskDefinition describes a single task to run (similar to an Ansible task).
type TaskDefinition struct {
	Name   string                 `json:"name"   yaml:"name"`
	Module string                 `json:"module" yaml:"module"`
	Params map[string]interface{} `json:"params" yaml:"params"`
}

// ModuleResult is what each module returns. Changed is a pointer because
// some results (raw passthrough commands) cannot tell whether anything
// changed and must omit the field.
type ModuleResult struct {
	TaskName string `json:"task_name,omitempty"`
	Module   string `json:"module"`
	Changed  *bool  `json:"changed,omitempty"`
	Failed   bool   `json:"failed"`
	Msg      string `json:"msg,omitempty"`

	Power   string `json:"power,omitempty"`
	Bootdev string `json:"bootdev,omitempty"`
	Options string `json:"options,omitempty"`

	Rc     *int   `json:"rc,omitempty"`
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// Bool returns a pointer to v, for ModuleResult.Changed.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v, for ModuleResult.Rc.
func Int(v int) *int { return &v }
