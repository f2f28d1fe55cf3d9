package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
)

type OrgsCommand struct {
	wiring commandWiring
}

func NewOrgsCommand(wiring commandWiring) *OrgsCommand {
	return &OrgsCommand{wiring: wiring}
}

func (c *OrgsCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orgs", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	orgs, err := env.session.ListOrganizations(ctx)
	if err != nil {
		return describeAccessError(err)
	}
	selected := env.session.OrganizationName()
	writer := tabwriter.NewWriter(c.wiring.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "\tNAME\tEMAIL\tURL")
	for _, org := range orgs {
		marker := ""
		if org.Name == selected {
			marker = "*"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", marker, org.Name, org.Email, env.session.URLForOrganization(org.Name))
	}
	return writer.Flush()
}

type OrgCommand struct {
	wiring commandWiring
}

func NewOrgCommand(wiring commandWiring) *OrgCommand {
	return &OrgCommand{wiring: wiring}
}

func (c *OrgCommand) Run(ctx context.Context, args []string) error {
	_, rest, err := subcommand("org", args, "use")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("org use", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("org use requires an organization name")
	}
	env, err := c.wiring.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	org, err := env.session.SetOrganization(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if org == nil {
		return fmt.Errorf("organization %s not found", fs.Arg(0))
	}
	fmt.Fprintf(c.wiring.stdout, "Using organization %s (%s)\n", org.Name, env.session.URLForOrganization(org.Name))
	return nil
}
