package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OpenGetDiscard(t *testing.T) {
	r := NewRegistry(newFakeStore(), nil, nil)

	s, err := r.Open(context.Background(), "about")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, StateReady, s.State())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, r.Discard(s.ID()))
	assert.Zero(t, r.Len())

	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Discard(s.ID()), ErrSessionNotFound)
}

func TestRegistry_OpenLoadFailureIsNotRegistered(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("unavailable")
	r := NewRegistry(store, nil, nil)

	_, err := r.Open(context.Background(), "about")
	var lf *core.LoadFailure
	require.ErrorAs(t, err, &lf)
	assert.Zero(t, r.Len())
}

func TestRegistry_SessionsOnSamePageAreIndependent(t *testing.T) {
	r := NewRegistry(newFakeStore(), nil, nil)
	ctx := context.Background()

	a, err := r.Open(ctx, "home")
	require.NoError(t, err)
	b, err := r.Open(ctx, "home")
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())

	_, err = a.AddBlock(core.BlockParagraph)
	require.NoError(t, err)
	assert.Len(t, a.Blocks(), 2)
	assert.Len(t, b.Blocks(), 1)
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(newFakeStore(), nil, nil)
	ctx := context.Background()

	_, err := r.Open(ctx, "a")
	require.NoError(t, err)
	_, err = r.Open(ctx, "b")
	require.NoError(t, err)

	assert.Zero(t, r.Sweep(time.Hour))
	assert.Equal(t, 2, r.Len())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, r.Sweep(time.Millisecond))
	assert.Zero(t, r.Len())
}

func TestRegistry_SweepSkipsSavingSessions(t *testing.T) {
	store := newFakeStore()
	r := NewRegistry(store, nil, nil)
	ctx := context.Background()

	s, err := r.Open(ctx, "a")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	store.putHook = func() {
		close(entered)
		<-release
	}

	done := make(chan error)
	go func() { done <- s.Save(ctx) }()
	<-entered

	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, r.Sweep(time.Millisecond))
	assert.Equal(t, 1, r.Len())

	close(release)
	require.NoError(t, <-done)
}

func TestRegistry_StartSweeper(t *testing.T) {
	r := NewRegistry(newFakeStore(), nil, nil)
	assert.Error(t, r.StartSweeper("not a schedule", time.Hour))

	require.NoError(t, r.StartSweeper("@every 1h", time.Hour))
	r.Stop()
}

func TestIdleTimeout(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"", DefaultIdleTimeout},
		{"30m", 30 * time.Minute},
		{"garbage", DefaultIdleTimeout},
		{"-1h", DefaultIdleTimeout},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("SESSION_IDLE_TIMEOUT", tc.value)
			assert.Equal(t, tc.want, IdleTimeout())
		})
	}
}
