package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor whether a failed attempt may be
// repeated and whether it counts against the operation's breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var errNilCallback = errors.New("resilience: operation callback is nil")

// Executor keeps one circuit breaker per operation name and applies the
// configured retry budget inside it.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: map[string]*gobreaker.CircuitBreaker[any]{},
	}
}

func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return errNilCallback
	}
	_, err := Call(ctx, e, operation, func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, fn(callCtx)
	}, classifier)
	return err
}

// Call runs fn under the executor and returns its value.
func Call[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var zero T
	if fn == nil {
		return zero, errNilCallback
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = recordOnly
	}

	attempt := func() (any, error) {
		return retry(ctx, e.cfg, op, fn, classifier)
	}
	var (
		value any
		err   error
	)
	if e.cfg.BreakerEnabled {
		value, err = e.breaker(op, classifier).Execute(attempt)
	} else {
		value, err = attempt()
	}
	if err != nil {
		return zero, err
	}
	out, _ := value.(T)
	return out, nil
}

func retry[T any](ctx context.Context, cfg Config, op string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var zero T
	limit := cfg.attemptsFor(op)
	delay := cfg.RetryInitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		if attempt >= limit || !classifier(err).Retryable {
			return zero, err
		}

		wait := min(delay, cfg.RetryMaxBackoff)
		slog.Warn("retry_attempt",
			"operation", op,
			"attempt", attempt,
			"max_attempts", limit,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if !sleep(ctx, wait) {
			return zero, err
		}
		delay = min(time.Duration(float64(delay)*cfg.RetryMultiplier), cfg.RetryMaxBackoff)
	}
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(op string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: e.tripAfter,
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = cb
	return cb
}

func (e *Executor) tripAfter(counts gobreaker.Counts) bool {
	if counts.Requests < e.cfg.BreakerMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func recordOnly(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
