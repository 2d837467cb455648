package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/eniac111/plumbops-ipmi/internal/ipmi"
	"github.com/eniac111/plumbops-ipmi/internal/logging"
	ipmimod "github.com/eniac111/plumbops-ipmi/internal/modules/ipmi"
	"github.com/eniac111/plumbops-ipmi/internal/modules/shell"
	"github.com/eniac111/plumbops-ipmi/internal/playbook"
	"github.com/eniac111/plumbops-ipmi/internal/types"
)

func ipmiCmd(args []string) int {
	fs := flag.NewFlagSet("ipmi", flag.ExitOnError)
	credsfile := fs.String("credsfile", "", "path to credentials file (required)")
	name := fs.String("name", "", "node id to resolve (required)")
	power := fs.String("power", "", "status|on|off|cycle|reset")
	bootdev := fs.String("bootdev", "", "pxe|disk|safe|cdrom|floppy|bios|diag")
	options := fs.String("options", "", "options for bootdev, e.g. persistent")
	passthru := fs.String("passthru", "", "raw ipmitool command")
	sleep := fs.String("sleep", "", "delay after success, seconds or <n>m")
	retryInterval := fs.Int("retry-interval", ipmi.DefaultRetryInterval, "seconds between transport retries")
	retryMax := fs.Int("retry-max", ipmi.DefaultRetryMax, "transport retry attempts")
	ipmitool := fs.String("ipmitool", "", "path to ipmitool")
	delegate := fs.String("delegate", "", "run ipmitool on this SSH host")
	delegateUser := fs.String("delegate-user", os.Getenv("USER"), "SSH user for the delegate")
	delegatePort := fs.Int("delegate-port", 22, "SSH port of the delegate")
	delegateKey := fs.String("delegate-key", "", "SSH private key for the delegate")
	insecure := fs.Bool("delegate-insecure", false, "skip delegate host key verification")
	logLevel := fs.String("log-level", "info", "debug|info|warn|error")
	fs.Parse(args)

	log := logging.New(os.Stderr, *logLevel, true)
	params := map[string]interface{}{
		"credsfile":      *credsfile,
		"name":           *name,
		"power":          *power,
		"bootdev":        *bootdev,
		"options":        *options,
		"passthru":       *passthru,
		"sleep":          *sleep,
		"retry_interval": *retryInterval,
		"retry_max":      *retryMax,
		"ipmitool":       *ipmitool,
	}
	if *delegate != "" {
		params["delegate_to"] = *delegate
		params["delegate_user"] = *delegateUser
		params["delegate_port"] = *delegatePort
		params["delegate_key"] = *delegateKey
		params["delegate_insecure"] = *insecure
	}

	res := ipmimod.IpmiModule{Log: log}.Run(context.Background(), types.TaskDefinition{
		Name: *name, Module: "ipmi", Params: params,
	})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if res.Failed {
		return 1
	}
	return 0
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	playbookPath := fs.String("playbook", "playbook.yaml", "path to playbook")
	logLevel := fs.String("log-level", "info", "debug|info|warn|error")
	fs.Parse(args)

	log := logging.New(os.Stderr, *logLevel, true)
	pb, err := playbook.Load(*playbookPath)
	if err != nil {
		return err
	}
	r := &playbook.Runner{
		Modules: map[string]playbook.Module{
			"ipmi":  ipmimod.IpmiModule{Log: log},
			"shell": shell.ShellModule{},
		},
		Log: log,
		Out: os.Stdout,
	}
	return r.Run(context.Background(), pb)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: plumbops <ipmi|run> [options]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ipmi":
		os.Exit(ipmiCmd(os.Args[2:]))
	case "run":
		if err := runCmd(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", os.Args[1])
		os.Exit(1)
	}
}
