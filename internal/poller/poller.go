package poller

import (
	"context"
	"io"
	"time"

	"tfcview/internal/backoff"
	"tfcview/internal/client"
	"tfcview/internal/logging"
	"tfcview/internal/types"
)

// API is the slice of the remote service a poll session reads.
type API interface {
	GetRun(ctx context.Context, id string, include ...string) (*types.Run, error)
	GetPlan(ctx context.Context, id string) (*types.Plan, error)
	GetApply(ctx context.Context, id string) (*types.Apply, error)
	GetCostEstimate(ctx context.Context, id string) (*types.CostEstimate, error)
	ListPolicyChecks(ctx context.Context, runID string) ([]*types.PolicyCheck, error)
	ListTaskStages(ctx context.Context, runID string, include ...string) ([]*types.TaskStage, error)
	GetTaskResult(ctx context.Context, id string) (*types.TaskResult, error)
}

// Phases toggles the optional parts of reconciliation.
type Phases struct {
	// CostEstimate reports the cost estimate once cost-estimated-at appears.
	CostEstimate bool
	// PolicyOverride treats a policy_soft_failed or policy_override status
	// without policy-checked-at as a completed policy check.
	PolicyOverride bool
	// Prompts prints the confirmation and policy override notices.
	Prompts bool
}

func DefaultPhases() Phases {
	return Phases{PolicyOverride: true, Prompts: true}
}

type Options struct {
	Policy    backoff.Policy
	FirstTick time.Duration
	Phases    Phases
	Retry     backoff.RetryPolicy
	Clock     backoff.Clock
	Logger    logging.Logger
	// RunURL resolves the console address printed with prompts.
	RunURL func(ctx context.Context, run *types.Run) (string, error)
}

func DefaultOptions() Options {
	return Options{
		Policy:    backoff.RunPolicy,
		FirstTick: 10 * time.Millisecond,
		Phases:    DefaultPhases(),
		Retry:     backoff.DefaultRetryPolicy(),
	}
}

// Poller follows one run until it reaches a terminal status, writing a
// progress line for every status change and every newly finished phase.
// A Poller is single use.
type Poller struct {
	api    API
	runID  string
	out    io.Writer
	opts   Options
	clock  backoff.Clock
	logger logging.Logger

	interval   *backoff.Interval
	lastStatus types.RunStatus
	seen       map[string]string
	phases     []phase
}

func New(api API, runID string, out io.Writer, opts Options) *Poller {
	if opts.Clock == nil {
		opts.Clock = backoff.SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.FirstTick < 0 {
		opts.FirstTick = 0
	}
	if out == nil {
		out = io.Discard
	}
	p := &Poller{
		api:      api,
		runID:    runID,
		out:      out,
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger.With(logging.Component("poller"), logging.F("run_id", runID)),
		interval: backoff.NewInterval(opts.Policy),
		seen:     map[string]string{},
	}
	p.phases = p.buildPhases()
	return p
}

// Poll runs the loop. It returns nil once the run completes or ctx is
// cancelled, and the first fetch error otherwise. Ticks never overlap: the
// next one is scheduled only after the previous one settled.
func (p *Poller) Poll(ctx context.Context) error {
	delay := p.opts.FirstTick
	for {
		if !p.wait(ctx, delay) {
			p.logger.Debug("run_poll_cancelled")
			return nil
		}
		done, err := p.tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("run_poll_failed", logging.Err(err))
			return err
		}
		if done {
			return nil
		}
		delay = p.interval.Current()
		p.logger.Debug("run_poll_scheduled", logging.F("delay", delay))
	}
}

func (p *Poller) wait(ctx context.Context, delay time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(delay):
		return ctx.Err() == nil
	}
}

// tick performs one fetch and reconciliation. done reports that the loop
// must stop, either on completion or on cancellation.
func (p *Poller) tick(ctx context.Context) (done bool, err error) {
	if ctx.Err() != nil {
		return true, nil
	}
	run, err := fetch(ctx, p, "run", func(fetchCtx context.Context) (*types.Run, error) {
		return p.api.GetRun(fetchCtx, p.runID)
	})
	if err != nil {
		return true, err
	}
	if ctx.Err() != nil {
		return true, nil
	}

	if run.Status != p.lastStatus {
		p.logStatusChange(run)
		p.lastStatus = run.Status
		p.interval.Reset()
		if err := p.reconcile(ctx, run); err != nil {
			return true, err
		}
		if ctx.Err() != nil {
			return true, nil
		}
		p.writeStatus(ctx, run)
	} else {
		p.interval.Grow()
	}

	if ctx.Err() != nil {
		return true, nil
	}
	if run.IsCompleted() {
		p.write(completedLine())
		p.logger.Info("run_poll_completed", logging.F("status", string(run.Status)))
		return true, nil
	}
	return false, nil
}

func (p *Poller) logStatusChange(run *types.Run) {
	fields := []logging.Field{
		logging.F("from", string(p.lastStatus)),
		logging.F("to", string(run.Status)),
	}
	if !run.Status.Known() {
		p.logger.Warn("run_status_unknown", fields...)
		return
	}
	prev, next := p.lastStatus.Rank(), run.Status.Rank()
	if prev >= 0 && next >= 0 && next < prev {
		p.logger.Warn("run_status_regressed", fields...)
		return
	}
	p.logger.Info("run_status_changed", fields...)
}

func (p *Poller) writeStatus(ctx context.Context, run *types.Run) {
	p.write(statusLine(run.Status))
	if !p.opts.Phases.Prompts {
		return
	}
	switch {
	case run.AwaitingConfirmation():
		p.write(promptLine("The Run is waiting for confirmation.", p.runURL(ctx, run)))
	case run.AwaitingPolicyOverride():
		p.write(promptLine("The Run is waiting for a policy override.", p.runURL(ctx, run)))
	}
}

func (p *Poller) runURL(ctx context.Context, run *types.Run) string {
	if p.opts.RunURL == nil {
		return ""
	}
	url, err := p.opts.RunURL(ctx, run)
	if err != nil {
		p.logger.Warn("run_url_failed", logging.Err(err))
		return ""
	}
	return url
}

func (p *Poller) write(text string) {
	if _, err := io.WriteString(p.out, text); err != nil {
		p.logger.Warn("run_output_write_failed", logging.Err(err))
	}
}

// fetch performs one remote read. In-flight calls are not cut short by
// cancellation; transient failures are retried under the retry policy.
func fetch[T any](ctx context.Context, p *Poller, what string, call func(context.Context) (T, error)) (T, error) {
	var result T
	fetchCtx := context.WithoutCancel(ctx)
	attempt := 0
	err := backoff.Do(ctx, p.opts.Retry, client.IsTransient, backoff.ClockSleeper(p.clock), func() error {
		attempt++
		value, err := call(fetchCtx)
		if err != nil {
			if attempt <= p.opts.Retry.Attempts && client.IsTransient(err) {
				p.logger.Warn("run_fetch_retry", logging.F("what", what), logging.F("attempt", attempt), logging.Err(err))
			}
			return err
		}
		result = value
		return nil
	})
	return result, err
}
