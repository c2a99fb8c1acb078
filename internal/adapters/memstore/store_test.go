package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/pkg/errors"
)

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, kvstore.KeyCapital)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	value := []byte("10000")
	require.NoError(t, s.Set(ctx, kvstore.KeyCapital, value))
	value[0] = '9'

	got, err := s.Get(ctx, kvstore.KeyCapital)
	require.NoError(t, err)
	assert.Equal(t, "10000", string(got), "stored value must not alias the caller's slice")

	require.NoError(t, s.Delete(ctx, kvstore.KeyCapital))
	_, err = s.Get(ctx, kvstore.KeyCapital)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, kvstore.SetJSON(ctx, s, kvstore.KeyRecoveryMode, true))

	var recovery bool
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyRecoveryMode, &recovery))
	assert.True(t, recovery)

	require.NoError(t, s.Set(ctx, kvstore.KeyPersona, []byte("{not json")))
	var persona map[string]float64
	err := kvstore.GetJSON(ctx, s, kvstore.KeyPersona, &persona)
	assert.ErrorIs(t, err, errors.ErrMalformedValue)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()
	changes, err := s.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, kvstore.KeyScenario, []byte(`"volatile"`)))
	require.NoError(t, s.Delete(ctx, kvstore.KeyVixOverride))

	for _, want := range []string{kvstore.KeyScenario, kvstore.KeyVixOverride} {
		select {
		case c := <-changes:
			assert.Equal(t, want, c.Key)
			assert.Equal(t, Source, c.Source)
		case <-time.After(time.Second):
			t.Fatalf("no change for %s", want)
		}
	}

	cancel()
	waitClosed(t, changes)
}

func TestMergedNotifiers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := New(), New()
	merged := kvstore.MergeNotifiers(a, nil, b)

	changes, err := merged.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, kvstore.KeyCapital, []byte("1")))
	require.NoError(t, b.Set(ctx, kvstore.KeyPersona, []byte("{}")))

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case c := <-changes:
			seen[c.Key] = true
		case <-time.After(time.Second):
			t.Fatal("merged notifier missed a change")
		}
	}
	assert.True(t, seen[kvstore.KeyCapital])
	assert.True(t, seen[kvstore.KeyPersona])

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	waitClosed(t, changes)
}

func waitClosed(t *testing.T, ch <-chan kvstore.Change) {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-timeout:
			t.Fatal("channel not closed")
		}
	}
}
