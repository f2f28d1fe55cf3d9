package watch

import (
	"context"
	"strings"
	"sync"
	"time"

	"tfcview/internal/backoff"
	"tfcview/internal/client"
	"tfcview/internal/logging"
	"tfcview/internal/notify"
	"tfcview/internal/types"
)

// API is what a watch cycle reads.
type API interface {
	GetWorkspace(ctx context.Context, id string) (*types.Workspace, error)
	GetRun(ctx context.Context, id string, include ...string) (*types.Run, error)
}

type Options struct {
	Policy     backoff.Policy
	Clock      backoff.Clock
	Logger     logging.Logger
	ConsoleURL string
	// LabelWidth caps the display width of the workspace name; 0 disables.
	LabelWidth int
}

func DefaultOptions() Options {
	return Options{
		Policy:     backoff.WorkspacePolicy,
		ConsoleURL: "https://app.terraform.io",
		LabelWidth: 40,
	}
}

// Scheduler keeps one workspace's status label fresh. Polling backs off
// while the label stays the same and drops to the floor when it changes.
type Scheduler struct {
	api    API
	opts   Options
	clock  backoff.Clock
	logger logging.Logger
	hub    *notify.Hub[Status]

	mu      sync.Mutex
	current *watchLoop
	last    Status
	loops   sync.WaitGroup
}

type watchLoop struct {
	orgID       string
	workspaceID string
	name        string
	refresh     chan struct{}
	cancel      context.CancelFunc
	interval    *backoff.Interval
	lastLabel   string
}

func New(api API, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = backoff.SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	logger := opts.Logger.With(logging.Component("watch"))
	return &Scheduler{
		api:    api,
		opts:   opts,
		clock:  opts.Clock,
		logger: logger,
		hub:    notify.NewHub[Status](logger),
	}
}

func (s *Scheduler) Subscribe(fn func(Status)) uint64 {
	return s.hub.Subscribe(fn)
}

func (s *Scheduler) Unsubscribe(id uint64) bool {
	return s.hub.Unsubscribe(id)
}

// Current returns the last published status.
func (s *Scheduler) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Watching reports the pair being watched.
func (s *Scheduler) Watching() (orgID, workspaceID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", "", false
	}
	return s.current.orgID, s.current.workspaceID, true
}

// StartWatch begins polling the workspace unless that same pair is already
// being watched. It reports whether a new watch started.
func (s *Scheduler) StartWatch(orgID, workspaceID, nameHint string) bool {
	orgID = strings.TrimSpace(orgID)
	workspaceID = strings.TrimSpace(workspaceID)
	if orgID == "" || workspaceID == "" {
		s.StopWatch()
		return false
	}

	s.mu.Lock()
	if s.current != nil && s.current.orgID == orgID && s.current.workspaceID == workspaceID {
		s.mu.Unlock()
		return false
	}
	if s.current != nil {
		s.current.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	loop := &watchLoop{
		orgID:       orgID,
		workspaceID: workspaceID,
		name:        strings.TrimSpace(nameHint),
		refresh:     make(chan struct{}, 1),
		cancel:      cancel,
		interval:    backoff.NewInterval(s.opts.Policy),
	}
	s.current = loop
	s.loops.Add(1)
	s.mu.Unlock()

	s.logger.Info("workspace_watch_started", logging.F("organization", orgID), logging.F("workspace_id", workspaceID))
	s.publish(loop, loadingStatus(loop, "Loading workspace..."))
	go s.run(ctx, loop)
	return true
}

// Refresh asks for an immediate extra tick. It is a no-op when nothing is
// watched.
func (s *Scheduler) Refresh() {
	s.mu.Lock()
	loop := s.current
	s.mu.Unlock()
	if loop == nil {
		return
	}
	s.publish(loop, loadingStatus(loop, "Refreshing workspace..."))
	select {
	case loop.refresh <- struct{}{}:
	default:
	}
}

// StopWatch cancels the pending tick and clears the watched pair. It does
// not wait for an in-flight tick; use Close for that.
func (s *Scheduler) StopWatch() {
	s.mu.Lock()
	loop := s.current
	if loop == nil {
		s.mu.Unlock()
		return
	}
	loop.cancel()
	s.current = nil
	s.last = Status{}
	s.mu.Unlock()

	s.logger.Info("workspace_watch_stopped", logging.F("workspace_id", loop.workspaceID))
	s.hub.Publish(Status{})
}

// Close stops watching and waits for every loop to exit.
func (s *Scheduler) Close() {
	s.StopWatch()
	s.loops.Wait()
}

func (s *Scheduler) run(ctx context.Context, loop *watchLoop) {
	defer s.loops.Done()
	var delay time.Duration
	for {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-loop.refresh:
			case <-s.clock.After(delay):
			}
		} else {
			select {
			case <-ctx.Done():
				return
			default:
			}
		}

		status, ok := s.tick(ctx, loop)
		if !ok {
			return
		}
		if status.Label != loop.lastLabel {
			loop.interval.Reset()
		} else {
			loop.interval.Grow()
		}
		loop.lastLabel = status.Label
		if status.Workspace != nil {
			loop.name = status.Workspace.Name
		}
		delay = loop.interval.Current()
		s.publish(loop, status)
		s.logger.Debug("workspace_watch_scheduled", logging.F("workspace_id", loop.workspaceID), logging.F("delay", delay))
	}
}

// tick fetches the workspace and its current and latest runs. ok is false
// when the watch was cancelled meanwhile.
func (s *Scheduler) tick(ctx context.Context, loop *watchLoop) (Status, bool) {
	fetchCtx := context.WithoutCancel(ctx)
	ws, err := s.api.GetWorkspace(fetchCtx, loop.workspaceID)
	if ctx.Err() != nil {
		return Status{}, false
	}
	if err != nil {
		if client.IsNotFound(err) {
			s.logger.Warn("workspace_watch_not_found", logging.F("workspace_id", loop.workspaceID))
		} else {
			s.logger.Warn("workspace_watch_failed", logging.F("workspace_id", loop.workspaceID), logging.Err(err))
		}
		return unknownStatus(loop, err), true
	}

	var current, latest *types.Run
	if ws.CurrentRunID != "" {
		current = s.fetchRun(fetchCtx, ws.CurrentRunID)
		if ctx.Err() != nil {
			return Status{}, false
		}
	}
	if ws.LatestRunID != "" {
		if current != nil && ws.LatestRunID == current.ID {
			latest = current
		} else {
			latest = s.fetchRun(fetchCtx, ws.LatestRunID)
			if ctx.Err() != nil {
				return Status{}, false
			}
		}
	}
	return render(ws, current, latest, s.opts), true
}

// fetchRun treats a run that cannot be read as absent.
func (s *Scheduler) fetchRun(ctx context.Context, id string) *types.Run {
	run, err := s.api.GetRun(ctx, id)
	if err != nil {
		s.logger.Warn("workspace_watch_run_failed", logging.F("run_id", id), logging.Err(err))
		return nil
	}
	return run
}

// publish drops statuses from loops that are no longer current.
func (s *Scheduler) publish(loop *watchLoop, status Status) {
	s.mu.Lock()
	if s.current != loop {
		s.mu.Unlock()
		return
	}
	s.last = status
	s.mu.Unlock()
	s.hub.Publish(status)
}
