package health

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/storefront/observe"
)

// DefaultTimeout bounds a whole Run.
const DefaultTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the deadline shared by all checks.
	// Default: DefaultTimeout
	Timeout time.Duration

	// Sequential runs checks one at a time in registration order.
	Sequential bool

	// Logger receives one entry per failing check.
	Logger observe.Logger
}

// Aggregator combines multiple health checkers into a single report.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers []Checker
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Aggregator{config: cfg}
}

// Register adds a checker. A checker with the same name replaces the
// previous one in place.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i := a.index(c.Name()); i >= 0 {
		a.checkers[i] = c
		return
	}
	a.checkers = append(a.checkers, c)
}

// Names returns the registered checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.checkers))
	for i, c := range a.checkers {
		names[i] = c.Name()
	}
	return names
}

func (a *Aggregator) index(name string) int {
	return slices.IndexFunc(a.checkers, func(c Checker) bool { return c.Name() == name })
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	i := a.index(name)
	var c Checker
	if i >= 0 {
		c = a.checkers[i]
	}
	a.mu.RUnlock()

	if c == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrCheckerNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return a.runCheck(ctx, c), nil
}

// NamedResult is one check's result within a Report.
type NamedResult struct {
	Name string
	Result
}

// Report is the outcome of Run.
type Report struct {
	Status   Status
	Results  []NamedResult // registration order
	Duration time.Duration
}

// Run executes every registered check under the configured deadline.
func (a *Aggregator) Run(ctx context.Context) Report {
	a.mu.RLock()
	checkers := slices.Clone(a.checkers)
	a.mu.RUnlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	results := make([]NamedResult, len(checkers))
	if a.config.Sequential {
		for i, c := range checkers {
			results[i] = NamedResult{Name: c.Name(), Result: a.runCheck(ctx, c)}
		}
	} else {
		var g errgroup.Group
		for i, c := range checkers {
			g.Go(func() error {
				results[i] = NamedResult{Name: c.Name(), Result: a.runCheck(ctx, c)}
				return nil
			})
		}
		_ = g.Wait()
	}

	statuses := make([]Status, len(results))
	for i, r := range results {
		statuses[i] = r.Status
	}
	return Report{
		Status:   Overall(statuses...),
		Results:  results,
		Duration: time.Since(start),
	}
}

// Overall folds statuses: any unhealthy wins, then any degraded. No
// statuses is healthy.
func Overall(statuses ...Status) Status {
	out := StatusHealthy
	for _, s := range statuses {
		if s > out {
			out = s
		}
	}
	return out
}

func (a *Aggregator) runCheck(ctx context.Context, c Checker) Result {
	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		resultCh <- c.Check(ctx)
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		result = Unhealthy("check timed out", ErrCheckTimeout)
	}
	result.Duration = time.Since(start)

	if result.Status != StatusHealthy {
		a.config.Logger.Warn(ctx, "health check failed",
			observe.F("check", c.Name()),
			observe.F("status", result.Status.String()),
			observe.F("error", result.Error),
		)
	}
	return result
}

// String renders one line per check.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "overall: %s (%s)\n", r.Status, r.Duration.Round(time.Millisecond))
	for _, nr := range r.Results {
		fmt.Fprintf(&b, "  %-8s %-9s %s", nr.Name, nr.Status, nr.Message)
		if nr.Error != nil {
			fmt.Fprintf(&b, ": %v", nr.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
