// Package creds resolves a logical node name to its management controller
// address and credentials.
package creds

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// Source reads a credentials file by path.
type Source interface {
	ReadFile(path string) ([]byte, error)
}

// LocalSource reads from the local filesystem.
type LocalSource struct{}

// ReadFile implements Source.
func (LocalSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ConfigError reports an unusable configuration: an unreadable or malformed
// credentials file, or an invalid parameter value.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NodeNotFoundError is returned when no entry of the credentials file has
// the requested id.
type NodeNotFoundError struct {
	Node   string
	Source string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found in %s", e.Node, e.Source)
}

// Load parses the whole credentials file. YAML is a superset of JSON, so
// both encodings go through the same decoder.
func Load(src Source, path string) (*types.CredentialsFile, error) {
	data, err := src.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: "read credentials file", Err: err}
	}
	var cf types.CredentialsFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("parse credentials file %s", path), Err: err}
	}
	return &cf, nil
}

// Resolve returns the first entry, in file order, whose id equals node.
func Resolve(src Source, path, node string) (types.NodeCredential, error) {
	cf, err := Load(src, path)
	if err != nil {
		return types.NodeCredential{}, err
	}
	for _, s := range cf.Servers {
		if s.ID == node {
			if err := validate(s, path); err != nil {
				return types.NodeCredential{}, err
			}
			return s, nil
		}
	}
	return types.NodeCredential{}, &NodeNotFoundError{Node: node, Source: path}
}

// validate rejects an entry missing any key needed to reach the controller.
func validate(c types.NodeCredential, path string) error {
	var missing []string
	if c.Address == "" {
		missing = append(missing, "ilo-ip")
	}
	if c.User == "" {
		missing = append(missing, "ilo-user")
	}
	if c.Password == "" {
		missing = append(missing, "ilo-password")
	}
	if len(missing) > 0 {
		return &ConfigError{Msg: fmt.Sprintf("node %q in %s is missing %s", c.ID, path, strings.Join(missing, ", "))}
	}
	return nil
}

// SplitExtras splits an extras string on single spaces. Empty tokens left by
// repeated spaces are dropped so they never reach the transport as empty
// arguments.
func SplitExtras(extras string) []string {
	if extras == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(extras, " ") {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
