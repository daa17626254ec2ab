// Package flow sequences navigation, timespan and snapshot captures over one
// exclusively-owned page into an ordered series of immutable step results.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/lib"
	"go.beacon.dev/beacon/log"
	"go.beacon.dev/beacon/metrics"
	"go.beacon.dev/beacon/recorder"
)

// DefaultFlowName names flows whose options don't set one.
const DefaultFlowName = "User flow"

// A Session is a stateful orchestrator of mode recorders against one
// PageDriver. Operations must be invoked strictly sequentially; a call that
// overlaps another returns ErrConcurrentCall.
type Session struct {
	id     string
	drv    driver.PageDriver
	opts   lib.Options
	logger *log.Logger

	registry *metrics.Registry
	builtin  *metrics.BuiltinMetrics

	mu     sync.Mutex
	state  State
	steps  []StepResult
	active *recorder.Timespan
	fatal  error
}

// NewSession binds a session to a live page driver. The driver is exclusively
// owned by the session until Close.
func NewSession(drv driver.PageDriver, opts lib.Options, logger *log.Logger) (*Session, error) {
	if drv == nil {
		return nil, errors.New("flow session needs a page driver")
	}
	if logger == nil {
		logger = log.NewNullLogger()
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow options: %w", err)
	}
	registry := metrics.NewRegistry()
	return &Session{
		id:       uuid.NewString(),
		drv:      drv,
		opts:     opts,
		logger:   logger,
		registry: registry,
		builtin:  metrics.RegisterBuiltinMetrics(registry),
		state:    Idle,
	}, nil
}

// A StepOption adjusts a single step.
type StepOption func(*StepResult)

// WithStepName overrides the step's auto-generated name.
func WithStepName(name string) StepOption {
	return func(r *StepResult) { r.Name = name }
}

// Navigate produces one navigation step result covering the full page-load
// lifecycle of target. Legal only while the session is idle.
func (s *Session) Navigate(ctx context.Context, target driver.Target, stepOpts ...StepOption) (*StepResult, error) {
	if err := s.begin("navigate"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if target.URL == "" && target.Callback == nil {
		return nil, errors.New("navigation target needs a URL or a callback")
	}

	c, err := recorder.Navigation(ctx, s.env(), target)
	if err != nil {
		return nil, s.classify("navigate", err, s.opts.NavigationTimeoutOrDefault())
	}
	step := s.append(Navigation, c, stepOpts)
	s.logger.Infof("flow", "navigation step %q done, score %.2f", step.Name, step.Score.Float64)
	return step, nil
}

// StartTimespan transitions the session to timespan recording and begins
// capturing immediately. Legal only while idle.
func (s *Session) StartTimespan(ctx context.Context) error {
	if err := s.begin("start a timespan"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	ts, err := recorder.StartTimespan(ctx, s.env())
	if err != nil {
		return s.classify("start a timespan", err, 0)
	}
	s.active = ts
	s.state = TimespanRecording
	return nil
}

// EndTimespan finalizes the active timespan into one step result and returns
// the session to idle. Legal only while a timespan is recording.
func (s *Session) EndTimespan(ctx context.Context) (*StepResult, error) {
	if err := s.beginInState("end a timespan", TimespanRecording); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	c, err := s.active.Stop(ctx)
	if err != nil {
		// A failed stop can leave the driver-side capture active; release
		// it so later steps can instrument again. The interval is lost.
		if !errors.Is(err, driver.ErrClosed) && s.driverAlive() {
			s.active.Abort(context.WithoutCancel(ctx))
		}
		return nil, s.classify("end a timespan", err, 0)
	}
	s.active = nil
	s.state = Idle
	step := s.append(Timespan, c, nil)
	return step, nil
}

// Snapshot captures the page's current DOM state synchronously into one step
// result. Legal only while idle.
func (s *Session) Snapshot(ctx context.Context, stepOpts ...StepOption) (*StepResult, error) {
	if err := s.begin("snapshot"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	c, err := recorder.Snapshot(ctx, s.env())
	if err != nil {
		return nil, s.classify("snapshot", err, 0)
	}
	step := s.append(Snapshot, c, stepOpts)
	return step, nil
}

// CreateFlowResult assembles the step results appended so far into a
// FlowResult. Legal in any state; read-only.
func (s *Session) CreateFlowResult() (*FlowResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrConcurrentCall
	}
	defer s.mu.Unlock()

	name := DefaultFlowName
	if s.opts.Name.Valid {
		name = s.opts.Name.String
	}
	steps := make([]StepResult, len(s.steps))
	copy(steps, s.steps)
	return &FlowResult{
		ID:        s.id,
		Name:      name,
		CreatedAt: time.Now(),
		Options:   s.opts,
		Steps:     steps,
	}, nil
}

// State reports the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close aborts any active timespan, releases the driver and closes the
// session. Already-captured step results stay available via
// CreateFlowResult.
func (s *Session) Close(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrConcurrentCall
	}
	defer s.mu.Unlock()

	if s.state == Closed {
		return nil
	}
	if s.active != nil {
		s.active.Abort(ctx)
		s.active = nil
	}
	s.state = Closed
	return s.drv.Close()
}

// begin acquires the session for one idle-only operation. The caller must
// unlock s.mu when the operation finishes.
func (s *Session) begin(op string) error {
	return s.beginInState(op, Idle)
}

func (s *Session) beginInState(op string, want State) error {
	if !s.mu.TryLock() {
		return ErrConcurrentCall
	}
	if s.state == Closed {
		err := ErrSessionClosed
		if s.fatal != nil {
			err = fmt.Errorf("%w: %w", ErrSessionClosed, s.fatal)
		}
		s.mu.Unlock()
		return err
	}
	if !s.driverAlive() {
		s.fail(op, driver.ErrClosed)
		err := s.fatal
		s.mu.Unlock()
		return err
	}
	if s.state != want {
		state := s.state
		s.mu.Unlock()
		return &TransitionError{Op: op, State: state}
	}
	return nil
}

func (s *Session) driverAlive() bool {
	select {
	case <-s.drv.Done():
		return false
	default:
		return true
	}
}

// classify maps a recorder error onto the session's error taxonomy. Driver
// loss is fatal and closes the session; timeouts fail only the offending
// step; anything else is reported as-is and leaves the session usable.
// bound is the session-configured deadline for the op, zero when the caller's
// context owned it.
func (s *Session) classify(op string, err error, bound time.Duration) error {
	if errors.Is(err, driver.ErrClosed) || !s.driverAlive() {
		s.fail(op, err)
		return s.fatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.recoverState()
		return &TimeoutError{Op: op, Bound: bound}
	}
	s.recoverState()
	return err
}

// fail poisons the session after a fatal driver error. An active timespan is
// discarded; its capture cannot be recovered from a dead driver.
func (s *Session) fail(op string, err error) {
	s.fatal = &DriverError{Op: op, Err: err}
	s.state = Closed
	s.active = nil
	s.logger.Errorf("flow", "%v", s.fatal)
}

// recoverState returns the machine to idle after a non-fatal step failure.
func (s *Session) recoverState() {
	s.active = nil
	s.state = Idle
}

func (s *Session) env() recorder.Env {
	return recorder.Env{
		Driver:   s.drv,
		Registry: s.registry,
		Builtin:  s.builtin,
		Logger:   s.logger,
		Options:  s.opts,
	}
}

// append wraps a capture into an immutable step result and appends it.
func (s *Session) append(mode Mode, c *recorder.Capture, stepOpts []StepOption) *StepResult {
	step := StepResult{
		ID:           uuid.NewString(),
		Mode:         mode,
		Name:         defaultStepName(mode, c.URL),
		URL:          c.URL,
		StartedAt:    c.StartedAt,
		FinishedAt:   c.FinishedAt,
		Measurements: c.Measurements,
		Score:        c.Score,
		Artifacts:    c.Artifacts,
		Snapshot:     c.Snapshot,
	}
	for _, opt := range stepOpts {
		opt(&step)
	}
	s.steps = append(s.steps, step)
	return &step
}

func defaultStepName(mode Mode, url string) string {
	switch mode {
	case Navigation:
		if url != "" {
			return fmt.Sprintf("Navigation (%s)", url)
		}
		return "Navigation"
	case Timespan:
		return "Timespan"
	case Snapshot:
		return "Snapshot"
	default:
		return "Step"
	}
}
