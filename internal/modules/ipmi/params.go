package ipmi

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/eniac111/plumbops-ipmi/internal/creds"
	core "github.com/eniac111/plumbops-ipmi/internal/ipmi"
	"github.com/eniac111/plumbops-ipmi/internal/types"
)

// params is the decoded form of a task's parameter map.
type params struct {
	CredsFile     string
	Name          string
	Power         string
	Bootdev       string
	Options       string
	Passthru      string
	Sleep         time.Duration
	RetryInterval int
	RetryMax      int
	Ipmitool      string
	Delegate      *types.Host
}

func decodeParams(p map[string]interface{}) (params, error) {
	var out params
	var err error

	if out.CredsFile, err = stringParam(p, "credsfile"); err != nil {
		return out, err
	}
	if out.Name, err = stringParam(p, "name"); err != nil {
		return out, err
	}
	if out.CredsFile == "" {
		return out, &creds.ConfigError{Msg: "missing 'credsfile' parameter"}
	}
	if out.Name == "" {
		return out, &creds.ConfigError{Msg: "missing 'name' parameter"}
	}
	for key, dst := range map[string]*string{
		"power":    &out.Power,
		"bootdev":  &out.Bootdev,
		"options":  &out.Options,
		"passthru": &out.Passthru,
		"ipmitool": &out.Ipmitool,
	} {
		if *dst, err = stringParam(p, key); err != nil {
			return out, err
		}
	}

	if out.RetryInterval, err = intParam(p, "retry_interval", core.DefaultRetryInterval); err != nil {
		return out, err
	}
	if out.RetryMax, err = intParam(p, "retry_max", core.DefaultRetryMax); err != nil {
		return out, err
	}

	sleep, err := stringParam(p, "sleep")
	if err != nil {
		return out, err
	}
	if sleep != "" {
		if out.Sleep, err = ParseSleep(sleep); err != nil {
			return out, &creds.ConfigError{Msg: "invalid 'sleep' parameter", Err: err}
		}
	}

	delegate, err := stringParam(p, "delegate_to")
	if err != nil {
		return out, err
	}
	if delegate != "" {
		h := &types.Host{Name: delegate}
		if h.User, err = stringParam(p, "delegate_user"); err != nil {
			return out, err
		}
		if h.User == "" {
			h.User = currentUser()
		}
		if h.KeyPath, err = stringParam(p, "delegate_key"); err != nil {
			return out, err
		}
		if h.Port, err = intParam(p, "delegate_port", 22); err != nil {
			return out, err
		}
		if h.Insecure, err = boolParam(p, "delegate_insecure"); err != nil {
			return out, err
		}
		out.Delegate = h
	}
	return out, nil
}

// ParseSleep reads a delay in seconds, or in minutes when suffixed with
// "m": "2" is 2s, "0.5m" is 30s.
func ParseSleep(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	unit := time.Second
	if strings.HasSuffix(s, "m") {
		unit = time.Minute
		s = strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid delay %v", v)
	}
	ns := v * float64(unit)
	if ns >= math.MaxInt64 {
		return 0, fmt.Errorf("delay %v out of range", v)
	}
	return time.Duration(ns), nil
}

// currentUser is the login the delegate connection falls back to.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func stringParam(p map[string]interface{}, key string) (string, error) {
	switch v := p[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", &creds.ConfigError{Msg: fmt.Sprintf("parameter '%s' must be a string, got %T", key, v)}
	}
}

func intParam(p map[string]interface{}, key string, def int) (int, error) {
	switch v := p[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, &creds.ConfigError{Msg: fmt.Sprintf("parameter '%s' must be an integer, got %s", key, v), Err: err}
		}
		return int(n), nil
	case float64:
		if v != float64(int(v)) {
			return 0, &creds.ConfigError{Msg: fmt.Sprintf("parameter '%s' must be an integer, got %v", key, v)}
		}
		return int(v), nil
	case string:
		if v == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &creds.ConfigError{Msg: fmt.Sprintf("parameter '%s' must be an integer", key), Err: err}
		}
		return n, nil
	default:
		return 0, &creds.ConfigError{Msg: fmt.Sprintf("parameter '%s' must be an integer, got %T", key, v)}
	}
}

func boolParam(p map[string]interface{}, key string) (bool, error) {
	switch v := p[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, &creds.ConfigError{Msg: fmt.Sprintf("parameter '%s' must be a boolean", key), Err: err}
		}
		return b, nil
	default:
		return false, &creds.ConfigError{Msg: fmt.Sprintf("parameter '%s' must be a boolean, got %T", key, v)}
	}
}
