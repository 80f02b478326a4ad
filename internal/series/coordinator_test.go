package series_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amasendi/ridepool-backend/internal/models"
	"github.com/amasendi/ridepool-backend/internal/series"
)

func openedCoordinator(t *testing.T) *series.Coordinator {
	t.Helper()
	coord := series.NewCoordinator()
	siblings := threeWeekSeries()
	_, err := coord.Open(1, series.VariantDelete, siblings[0], siblings)
	require.NoError(t, err)
	return coord
}

func TestCoordinator_OpenDefaultsToSingle(t *testing.T) {
	coord := series.NewCoordinator()
	siblings := threeWeekSeries()

	options, err := coord.Open(1, series.VariantEdit, siblings[1], siblings)

	require.NoError(t, err)
	require.Len(t, options, 3)

	scope, err := coord.Selected(1, 2)
	require.NoError(t, err)
	assert.Equal(t, series.ScopeSingle, scope)
}

func TestCoordinator_OpenRejectsUnknownVariant(t *testing.T) {
	coord := series.NewCoordinator()
	siblings := threeWeekSeries()

	_, err := coord.Open(1, series.Variant("archive"), siblings[0], siblings)

	assert.ErrorIs(t, err, series.ErrValidation)
}

func TestCoordinator_SelectAvailableScope(t *testing.T) {
	coord := openedCoordinator(t)

	require.NoError(t, coord.Select(1, 1, series.ScopeSeries))

	scope, err := coord.Selected(1, 1)
	require.NoError(t, err)
	assert.Equal(t, series.ScopeSeries, scope)
}

func TestCoordinator_SelectDisabledScopeRejected(t *testing.T) {
	coord := series.NewCoordinator()
	siblings := threeWeekSeries()
	last := siblings[2] // future would target only the anchor
	_, err := coord.Open(1, series.VariantDelete, last, siblings)
	require.NoError(t, err)

	err = coord.Select(1, 3, series.ScopeFuture)

	assert.ErrorIs(t, err, series.ErrValidation)
}

func TestCoordinator_SeriesSelectableOnSingleMemberSeries(t *testing.T) {
	coord := series.NewCoordinator()
	anchor := member(4, "G", "2025-02-01")
	_, err := coord.Open(1, series.VariantDelete, anchor, []models.Occurrence{anchor})
	require.NoError(t, err)

	require.NoError(t, coord.Select(1, 4, series.ScopeSeries))

	scope, err := coord.Selected(1, 4)
	require.NoError(t, err)
	assert.Equal(t, series.ScopeSeries, scope)
}

func TestCoordinator_SelectWithoutSession(t *testing.T) {
	coord := series.NewCoordinator()

	assert.ErrorIs(t, coord.Select(1, 1, series.ScopeSingle), series.ErrNoSession)
}

func TestCoordinator_ConfirmRunsSelectedScopeAndCloses(t *testing.T) {
	coord := openedCoordinator(t)
	require.NoError(t, coord.Select(1, 1, series.ScopeFuture))

	var got series.Scope
	err := coord.Confirm(context.Background(), 1, 1, func(_ context.Context, scope series.Scope) error {
		got = scope
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, series.ScopeFuture, got)

	// Session is closed once the call settles.
	_, err = coord.Selected(1, 1)
	assert.ErrorIs(t, err, series.ErrNoSession)
}

func TestCoordinator_ConfirmClosesOnFailureToo(t *testing.T) {
	coord := openedCoordinator(t)

	err := coord.Confirm(context.Background(), 1, 1, func(context.Context, series.Scope) error {
		return series.ErrForbidden
	})

	assert.ErrorIs(t, err, series.ErrForbidden)
	_, err = coord.Selected(1, 1)
	assert.ErrorIs(t, err, series.ErrNoSession)
}

func TestCoordinator_DoubleConfirmRejected(t *testing.T) {
	coord := openedCoordinator(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = coord.Confirm(context.Background(), 1, 1, func(context.Context, series.Scope) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := coord.Confirm(context.Background(), 1, 1, func(context.Context, series.Scope) error {
		t.Error("second confirm must not dispatch")
		return nil
	})
	assert.ErrorIs(t, err, series.ErrConfirmInFlight)

	// Cancel is also rejected while the call is outstanding.
	assert.ErrorIs(t, coord.Cancel(1, 1), series.ErrConfirmInFlight)

	close(release)
	wg.Wait()
}

func TestCoordinator_CancelOpenSession(t *testing.T) {
	coord := openedCoordinator(t)

	require.NoError(t, coord.Cancel(1, 1))

	_, err := coord.Selected(1, 1)
	assert.ErrorIs(t, err, series.ErrNoSession)
}

func TestCoordinator_CancelWithoutSessionIsNoOp(t *testing.T) {
	coord := series.NewCoordinator()

	assert.NoError(t, coord.Cancel(1, 1))
}

func TestCoordinator_ReopenReplacesAbandonedSession(t *testing.T) {
	coord := openedCoordinator(t)
	require.NoError(t, coord.Select(1, 1, series.ScopeSeries))

	siblings := threeWeekSeries()
	_, err := coord.Open(1, series.VariantEdit, siblings[0], siblings)
	require.NoError(t, err)

	// Fresh session starts back at single.
	scope, err := coord.Selected(1, 1)
	require.NoError(t, err)
	assert.Equal(t, series.ScopeSingle, scope)
}

func TestCoordinator_RunGuardsWithoutOpenSession(t *testing.T) {
	coord := series.NewCoordinator()

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = coord.Run(context.Background(), 1, 1, series.ScopeSeries, func(context.Context, series.Scope) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := coord.Run(context.Background(), 1, 1, series.ScopeSingle, func(context.Context, series.Scope) error {
		t.Error("racing run must not dispatch")
		return nil
	})
	assert.ErrorIs(t, err, series.ErrConfirmInFlight)

	close(release)
	wg.Wait()

	// Once settled, the anchor is free again.
	var got series.Scope
	err = coord.Run(context.Background(), 1, 1, series.ScopeSingle, func(_ context.Context, scope series.Scope) error {
		got = scope
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, series.ScopeSingle, got)
}

func TestCoordinator_SessionsAreScopedPerRequesterAndAnchor(t *testing.T) {
	coord := openedCoordinator(t)
	siblings := threeWeekSeries()

	// A different requester on the same anchor gets an independent session.
	_, err := coord.Open(2, series.VariantDelete, siblings[0], siblings)
	require.NoError(t, err)
	require.NoError(t, coord.Select(2, 1, series.ScopeSeries))

	scope, err := coord.Selected(1, 1)
	require.NoError(t, err)
	assert.Equal(t, series.ScopeSingle, scope)
}
