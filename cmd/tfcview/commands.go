package main

import (
	"context"
	"io"
	"os"

	"tfcview/internal/backoff"
	"tfcview/internal/client"
	"tfcview/internal/config"
	"tfcview/internal/logging"
	"tfcview/internal/store"
)

type commandRunner interface {
	Run(ctx context.Context, args []string) error
}

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	stdin      io.Reader
	loadConfig func() (config.Config, error)
	openLogger func(cfg config.Config) (logging.Logger, io.Closer, error)
	newAPI     apiFactory
	openStore  func(ctx context.Context, cfg config.Config) (store.SessionStateStore, error)
	saveToken  func(cfg config.Config, token string) error
	copyText   func(text string) (string, error)
	clock      backoff.Clock
}

func defaultCommandWiring(stdout, stderr io.Writer, stdin io.Reader) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	return commandWiring{
		stdout:     stdout,
		stderr:     stderr,
		stdin:      stdin,
		loadConfig: config.Load,
		openLogger: openLogFile,
		newAPI:     newClientAPI,
		openStore:  openSessionStore,
		saveToken:  saveClientToken,
		copyText:   copyTextToClipboard,
		clock:      backoff.SystemClock(),
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"auth":       NewAuthCommand(wiring),
		"orgs":       NewOrgsCommand(wiring),
		"org":        NewOrgCommand(wiring),
		"workspaces": NewWorkspacesCommand(wiring),
		"workspace":  NewWorkspaceCommand(wiring),
		"run":        NewRunCommand(wiring),
		"policy":     NewPolicyCommand(wiring),
		"config":     NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadConfig),
	}
}

func openLogFile(cfg config.Config) (logging.Logger, io.Closer, error) {
	path, err := config.LogPath()
	if err != nil {
		return nil, nil, err
	}
	return logging.OpenFile(path, logging.ParseLevel(cfg.LogLevel()))
}

func openSessionStore(ctx context.Context, cfg config.Config) (store.SessionStateStore, error) {
	statePath, err := config.StatePath()
	if err != nil {
		return nil, err
	}
	dbPath, err := config.StateDBPath()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, store.Paths{StatePath: statePath, DBPath: dbPath}, cfg.StorageBackend())
}

func saveClientToken(cfg config.Config, token string) error {
	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	return c.SaveToken(token)
}
