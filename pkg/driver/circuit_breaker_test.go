package driver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/careergraph/pkg/config"
	"github.com/soundprediction/careergraph/pkg/driver"
	"github.com/soundprediction/careergraph/pkg/types"
)

// flakyDriver fails reads with err while err is set.
type flakyDriver struct {
	*driver.BadgerDriver
	err   error
	calls int
}

func (f *flakyDriver) ListResumes(ctx context.Context) ([]types.ResumeListing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.BadgerDriver.ListResumes(ctx)
}

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         60,
		Timeout:          60,
		ReadyToTripRatio: 0.5,
	}
}

func TestCircuitBreakerTripsOnConnectionErrors(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyDriver{
		BadgerDriver: newBadger(t),
		err:          &types.ConnectionError{Op: "ListResumes", Err: errors.New("connection refused")},
	}
	cb := driver.NewCircuitBreakerDriver(flaky, breakerConfig(), nil)

	for i := 0; i < 3; i++ {
		_, err := cb.ListResumes(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, 3, flaky.calls)

	// open: fails fast without reaching the driver
	_, err := cb.ListResumes(ctx)
	var cerr *types.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, flaky.calls)
}

func TestCircuitBreakerIgnoresOtherErrors(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyDriver{BadgerDriver: newBadger(t), err: errors.New("syntax error")}
	cb := driver.NewCircuitBreakerDriver(flaky, breakerConfig(), nil)

	for i := 0; i < 5; i++ {
		_, err := cb.ListResumes(ctx)
		require.EqualError(t, err, "syntax error")
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	// validation failures inside a write do not count either
	for i := 0; i < 5; i++ {
		err := cb.ExecuteWrite(ctx, func(ctx context.Context, tx driver.WriteTx) error {
			return tx.Relate(ctx, driver.Relation{From: resume1, To: goSkill, Type: types.EdgeHasSkill})
		})
		assert.ErrorIs(t, err, driver.ErrNodeNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	flaky.err = nil
	list, err := cb.ListResumes(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCircuitBreakerPassThrough(t *testing.T) {
	ctx := context.Background()
	base := newBadger(t)
	cb := driver.WithCircuitBreaker(base, breakerConfig(), nil)

	require.NoError(t, cb.ExecuteWrite(ctx, func(ctx context.Context, tx driver.WriteTx) error {
		return tx.MergeRecord(ctx, resume1, types.Properties{"id": "r1"})
	}))
	summary, err := cb.ResumeSummary(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, summary)

	missing, err := cb.ResumeSummary(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	stats, err := cb.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Nodes["Resume"])

	_, err = cb.SkillDemand(ctx)
	assert.NoError(t, err)
	_, err = cb.JobListings(ctx)
	assert.NoError(t, err)
	_, err = cb.ResumeSkills(ctx, "")
	assert.NoError(t, err)
	assert.NoError(t, cb.CreateIndices(ctx))
	assert.NoError(t, cb.VerifyConnectivity(ctx))
	assert.Equal(t, driver.GraphProviderBadger, cb.Provider())
}

func TestWithCircuitBreakerDisabled(t *testing.T) {
	base := newBadger(t)
	cfg := breakerConfig()
	cfg.Enabled = false
	assert.Same(t, base, driver.WithCircuitBreaker(base, cfg, nil))
}
