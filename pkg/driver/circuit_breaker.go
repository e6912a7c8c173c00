package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/careergraph/pkg/config"
	"github.com/soundprediction/careergraph/pkg/types"
)

// CircuitBreakerDriver wraps a GraphDriver with circuit breaking logic.
// Only connection failures count against the breaker; validation and
// query errors pass through untouched. While the breaker is open every
// call fails fast with *types.ConnectionError.
type CircuitBreakerDriver struct {
	driver GraphDriver
	cb     *gobreaker.CircuitBreaker
}

// WithCircuitBreaker returns d wrapped in a breaker, or d itself when the
// breaker is disabled.
func WithCircuitBreaker(d GraphDriver, cfg config.CircuitBreakerConfig, logger *slog.Logger) GraphDriver {
	if !cfg.Enabled {
		return d
	}
	return NewCircuitBreakerDriver(d, cfg, logger)
}

// NewCircuitBreakerDriver creates a new circuit breaker driver.
func NewCircuitBreakerDriver(d GraphDriver, cfg config.CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerDriver {
	if logger == nil {
		logger = slog.Default()
	}
	ratio := cfg.ReadyToTripRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	st := gobreaker.Settings{
		Name:        "graph-" + string(d.Provider()),
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= ratio
		},
		IsSuccessful: func(err error) bool {
			var cerr *types.ConnectionError
			return !errors.As(err, &cerr)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("circuit breaker tripped, datastore calls will fail fast",
					"breaker", name, "from", from.String(), "to", to.String())
				return
			}
			logger.Info("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &CircuitBreakerDriver{
		driver: d,
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

// State reports the breaker state.
func (c *CircuitBreakerDriver) State() gobreaker.State {
	return c.cb.State()
}

func guard[T any](c *CircuitBreakerDriver, op string, fn func() (T, error)) (T, error) {
	var zero T
	res, err := c.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, &types.ConnectionError{Op: op, Err: err}
	}
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// ExecuteWrite implements GraphDriver
func (c *CircuitBreakerDriver) ExecuteWrite(ctx context.Context, fn func(ctx context.Context, tx WriteTx) error) error {
	_, err := guard(c, "write", func() (struct{}, error) {
		return struct{}{}, c.driver.ExecuteWrite(ctx, fn)
	})
	return err
}

// ResumeSummary implements GraphReader
func (c *CircuitBreakerDriver) ResumeSummary(ctx context.Context, resumeID string) (*types.ResumeSummary, error) {
	return guard(c, "ResumeSummary", func() (*types.ResumeSummary, error) {
		return c.driver.ResumeSummary(ctx, resumeID)
	})
}

// ListResumes implements GraphReader
func (c *CircuitBreakerDriver) ListResumes(ctx context.Context) ([]types.ResumeListing, error) {
	return guard(c, "ListResumes", func() ([]types.ResumeListing, error) {
		return c.driver.ListResumes(ctx)
	})
}

// ResumeSkills implements GraphReader
func (c *CircuitBreakerDriver) ResumeSkills(ctx context.Context, resumeID string) ([]string, error) {
	return guard(c, "ResumeSkills", func() ([]string, error) {
		return c.driver.ResumeSkills(ctx, resumeID)
	})
}

// SkillDemand implements GraphReader
func (c *CircuitBreakerDriver) SkillDemand(ctx context.Context) ([]types.SkillDemand, error) {
	return guard(c, "SkillDemand", func() ([]types.SkillDemand, error) {
		return c.driver.SkillDemand(ctx)
	})
}

// JobListings implements GraphReader
func (c *CircuitBreakerDriver) JobListings(ctx context.Context) ([]types.JobListing, error) {
	return guard(c, "JobListings", func() ([]types.JobListing, error) {
		return c.driver.JobListings(ctx)
	})
}

// Stats implements GraphReader
func (c *CircuitBreakerDriver) Stats(ctx context.Context) (*types.GraphStats, error) {
	return guard(c, "Stats", func() (*types.GraphStats, error) {
		return c.driver.Stats(ctx)
	})
}

// CreateIndices implements GraphDriver
func (c *CircuitBreakerDriver) CreateIndices(ctx context.Context) error {
	_, err := guard(c, "CreateIndices", func() (struct{}, error) {
		return struct{}{}, c.driver.CreateIndices(ctx)
	})
	return err
}

// VerifyConnectivity implements GraphDriver
func (c *CircuitBreakerDriver) VerifyConnectivity(ctx context.Context) error {
	_, err := guard(c, "VerifyConnectivity", func() (struct{}, error) {
		return struct{}{}, c.driver.VerifyConnectivity(ctx)
	})
	return err
}

// Provider implements GraphDriver
func (c *CircuitBreakerDriver) Provider() GraphProvider {
	return c.driver.Provider()
}

// Close implements GraphDriver
func (c *CircuitBreakerDriver) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
