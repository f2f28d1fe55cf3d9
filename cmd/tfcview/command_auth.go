package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
)

type AuthCommand struct {
	wiring commandWiring
}

func NewAuthCommand(wiring commandWiring) *AuthCommand {
	return &AuthCommand{wiring: wiring}
}

func (c *AuthCommand) Run(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("auth", args, "login", "status")
	if err != nil {
		return err
	}
	switch sub {
	case "login":
		return c.login(ctx, rest)
	default:
		return c.status(ctx, rest)
	}
}

func (c *AuthCommand) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("auth login", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	token := fs.String("token", "", "api token (read from stdin when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	value := strings.TrimSpace(*token)
	if value == "" {
		fmt.Fprint(c.wiring.stderr, "API token: ")
		line, err := bufio.NewReader(c.wiring.stdin).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no token provided")
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return errors.New("no token provided")
	}
	cfg, err := c.wiring.loadConfig()
	if err != nil {
		return err
	}
	if err := c.wiring.saveToken(cfg, value); err != nil {
		return err
	}
	fmt.Fprintln(c.wiring.stdout, "Token saved.")
	return c.status(ctx, nil)
}

func (c *AuthCommand) status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("auth status", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.wiring.loadConfig()
	if err != nil {
		return err
	}
	api, err := c.wiring.newAPI(cfg)
	if err != nil {
		return err
	}
	user, err := api.CurrentUser(ctx)
	if err != nil {
		return describeAccessError(err)
	}
	if user.Email != "" {
		fmt.Fprintf(c.wiring.stdout, "Logged in to %s as %s (%s)\n", cfg.APIURL(), user.Username, user.Email)
	} else {
		fmt.Fprintf(c.wiring.stdout, "Logged in to %s as %s\n", cfg.APIURL(), user.Username)
	}
	return nil
}

// subcommand splits args into a verb from allowed and its arguments.
func subcommand(name string, args []string, allowed ...string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s requires a subcommand: %s", name, strings.Join(allowed, "|"))
	}
	for _, verb := range allowed {
		if args[0] == verb {
			return verb, args[1:], nil
		}
	}
	return "", nil, fmt.Errorf("unknown %s subcommand %q (want %s)", name, args[0], strings.Join(allowed, "|"))
}
