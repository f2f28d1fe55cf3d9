package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usageText = `tfcview follows Terraform Cloud workspaces and runs from the terminal.

Usage:
  tfcview <command> [flags]

Commands:
  auth login|status          save or check the API token
  orgs                       list organizations
  org use <name>             select an organization
  workspaces [--filter q]    list workspaces in the selected organization
  workspace lock <name>      lock a workspace
  workspace unlock <name>    unlock a workspace
  workspace watch [<name>]   follow a workspace's status label
  workspace actions [<name>] list what can be done to a workspace
  run create [<workspace>]   queue a run and follow it
  run watch <id>             follow an existing run
  run show <id>              print the run details document
  run url <id> [--copy]      print the console address of a run
  run apply|cancel|discard <id>
  policy override <id>       override soft-failed policy checks
  config                     print configuration (effective or defaults)
  help                       show help

Examples:
  tfcview org use acme
  tfcview workspaces --filter net
  tfcview run create network --message "rotate keys"
  tfcview config --scope poll --format toml
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage(os.Stderr)
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage(os.Stderr)
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr, os.Stdin)
	commands := buildCommands(wiring)
	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runner.Run(ctx, args[1:])
	interrupted := ctx.Err() != nil
	stop()
	if interrupted && (err == nil || errors.Is(err, context.Canceled)) {
		os.Exit(130)
	}
	exitOnErr(args[0], err, wiring.stderr)
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}
