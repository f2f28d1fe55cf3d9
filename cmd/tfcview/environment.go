package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tfcview/internal/actions"
	"tfcview/internal/backoff"
	"tfcview/internal/client"
	"tfcview/internal/config"
	"tfcview/internal/logging"
	"tfcview/internal/poller"
	"tfcview/internal/session"
	"tfcview/internal/types"
)

var errNoOrganization = errors.New("no organization selected; run `tfcview org use <name>`")

// environment is the per-invocation object graph.
type environment struct {
	cfg     config.Config
	logger  logging.Logger
	api     remoteAPI
	session *session.Session
	actions *actions.Facade
	clock   backoff.Clock
	closers []io.Closer
}

func (w commandWiring) open(ctx context.Context) (*environment, error) {
	cfg, err := w.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	env := &environment{cfg: cfg, logger: logging.Nop(), clock: w.clock}
	if w.openLogger != nil {
		logger, closer, err := w.openLogger(cfg)
		if err != nil {
			fmt.Fprintf(w.stderr, "warning: logging disabled: %v\n", err)
		} else {
			env.logger = logger
			env.closers = append(env.closers, closer)
		}
	}
	env.api, err = w.newAPI(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	opts := session.Options{
		ConsoleURL:            cfg.APIURL(),
		OrganizationCacheSize: cfg.OrganizationCacheSize(),
		WorkspaceCacheSize:    cfg.WorkspaceCacheSize(),
		Logger:                env.logger,
	}
	if w.openStore != nil {
		st, err := w.openStore(ctx, cfg)
		if err != nil {
			env.logger.Warn("session_store_unavailable", logging.Err(err))
		} else {
			opts.Store = st
			env.closers = append(env.closers, st)
		}
	}
	env.session = session.New(env.api, opts)
	env.actions = actions.New(env.api, env.session, env.logger)
	if err := env.session.Restore(ctx); err != nil {
		env.logger.Warn("session_restore_failed", logging.Err(err))
	}
	return env, nil
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
	e.closers = nil
}

func (e *environment) pollOptions() poller.Options {
	interval := e.cfg.RunPollInterval()
	opts := poller.DefaultOptions()
	opts.Policy = backoff.Policy{Floor: interval.Floor, Ceiling: interval.Ceiling, Multiplier: interval.Multiplier}
	opts.FirstTick = e.cfg.RunFirstTickDelay()
	opts.Phases.CostEstimate = e.cfg.CostEstimatePhase()
	opts.Phases.PolicyOverride = e.cfg.PolicyOverridePhase()
	opts.Retry.Attempts = e.cfg.FetchRetries()
	opts.Clock = e.clock
	opts.Logger = e.logger
	return opts
}

// workspace resolves an id ("ws-...") or a name in the selected
// organization.
func (e *environment) workspace(ctx context.Context, ref string) (*types.Workspace, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("workspace name is required")
	}
	var ws *types.Workspace
	var err error
	if strings.HasPrefix(ref, "ws-") {
		ws, err = e.session.GetWorkspace(ctx, ref, false)
	} else {
		org := e.session.OrganizationName()
		if org == "" {
			return nil, errNoOrganization
		}
		ws, err = e.session.GetWorkspaceByName(ctx, org, ref)
	}
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace %s not found", ref)
	}
	return ws, nil
}

func (e *environment) run(ctx context.Context, id string) (*types.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("run id is required")
	}
	run, err := e.session.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, nil
}

func describeAccessError(err error) error {
	if client.IsUnauthorized(err) {
		return fmt.Errorf("%w; check the token with `tfcview auth status`", err)
	}
	return err
}
