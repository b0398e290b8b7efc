package inbound

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-githubapp/core"
)

// Result is the outcome of one supervised operation.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Supervisor collects results of independently dispatched background
// operations into one structured channel, replacing any process-global
// fallback handler. The default policy logs failures and keeps unrelated
// work running; authentication failures abort new work when
// ContinueOnAuthError is false.
type Supervisor struct {
	Logger              core.Logger
	ContinueOnAuthError bool

	results chan Result
	wg      sync.WaitGroup

	mu       sync.Mutex
	abortErr error
}

func NewSupervisor(buffer int, logger core.Logger) *Supervisor {
	if buffer <= 0 {
		buffer = 64
	}
	return &Supervisor{
		Logger:              logger,
		ContinueOnAuthError: true,
		results:             make(chan Result, buffer),
	}
}

// Go runs fn in the background and records its result. Panics are
// recovered into failures so one bad handler cannot take down the process.
func (s *Supervisor) Go(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if s == nil {
		return core.BadConfigError("inbound: supervisor is nil", nil)
	}
	if fn == nil {
		return core.BadConfigError("inbound: supervised fn is required", map[string]any{"name": name})
	}
	if err := s.Err(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		startedAt := time.Now().UTC()
		err := s.run(ctx, fn)
		result := Result{Name: name, Err: err, Duration: time.Since(startedAt)}
		s.record(result)
		select {
		case s.results <- result:
		default:
			// A full channel drops nothing important: results were
			// already logged and folded into the abort state.
			s.logError("inbound: supervisor result channel full", "name", name)
		}
	}()
	return nil
}

func (s *Supervisor) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = core.MapError(fmt.Errorf("inbound: supervised operation panicked: %v", recovered))
		}
	}()
	return fn(ctx)
}

func (s *Supervisor) record(result Result) {
	if result.Err == nil {
		s.logDebug("inbound: supervised operation done", "name", result.Name, "duration_ms", result.Duration.Milliseconds())
		return
	}
	s.logError("inbound: supervised operation failed",
		"name", result.Name,
		"duration_ms", result.Duration.Milliseconds(),
		"error", result.Err.Error(),
	)
	if s.ContinueOnAuthError {
		return
	}
	var richErr *goerrors.Error
	if goerrors.As(result.Err, &richErr) && richErr.Category == goerrors.CategoryAuth {
		s.mu.Lock()
		if s.abortErr == nil {
			s.abortErr = result.Err
		}
		s.mu.Unlock()
	}
}

// Err reports the abort state: non-nil once an authentication failure was
// observed under the abort policy. New work is refused after that.
func (s *Supervisor) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortErr
}

// Results exposes the structured result channel for callers that want to
// consume outcomes as they arrive.
func (s *Supervisor) Results() <-chan Result {
	if s == nil {
		return nil
	}
	return s.results
}

// Wait blocks until every operation dispatched so far has finished, then
// drains and returns their buffered results.
func (s *Supervisor) Wait() []Result {
	if s == nil {
		return nil
	}
	s.wg.Wait()
	var collected []Result
	for {
		select {
		case result := <-s.results:
			collected = append(collected, result)
		default:
			return collected
		}
	}
}

func (s *Supervisor) logDebug(message string, args ...any) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Debug(message, args...)
}

func (s *Supervisor) logError(message string, args ...any) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Error(message, args...)
}
