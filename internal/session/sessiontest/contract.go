// Package sessiontest holds a behavioural test suite shared by every
// session.Store backend.
package sessiontest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract verifies that store honours the session.Store contract.
// The store is expected to be empty when the suite starts.
func RunStoreContract(t *testing.T, store session.Store) {
	ctx := context.Background()
	prefix := fmt.Sprintf("CA-contract-%d", time.Now().UnixNano())
	stamp := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("put and get", func(t *testing.T) {
		sess := ivr.Session{CallID: prefix + "-a", CurrentState: ivr.StateMenu, UpdatedAt: stamp}
		require.NoError(t, store.Put(ctx, sess))

		got, err := store.Get(ctx, sess.CallID)
		require.NoError(t, err)
		assert.Equal(t, sess.CallID, got.CallID)
		assert.Equal(t, ivr.StateMenu, got.CurrentState)
		assert.True(t, stamp.Equal(got.UpdatedAt), "updated_at = %v, want %v", got.UpdatedAt, stamp)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("put overwrites", func(t *testing.T) {
		id := prefix + "-b"
		require.NoError(t, store.Put(ctx, ivr.Session{CallID: id, CurrentState: ivr.StateMenu, UpdatedAt: stamp}))
		require.NoError(t, store.Put(ctx, ivr.Session{CallID: id, CurrentState: ivr.StateHours, UpdatedAt: stamp}))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ivr.StateHours, got.CurrentState)
	})

	t.Run("sessions are isolated per call", func(t *testing.T) {
		one := ivr.Session{CallID: prefix + "-c1", CurrentState: ivr.StateSales, UpdatedAt: stamp}
		two := ivr.Session{CallID: prefix + "-c2", CurrentState: ivr.StateSupport, UpdatedAt: stamp}
		require.NoError(t, store.Put(ctx, one))
		require.NoError(t, store.Put(ctx, two))

		got, err := store.Get(ctx, one.CallID)
		require.NoError(t, err)
		assert.Equal(t, ivr.StateSales, got.CurrentState)

		got, err = store.Get(ctx, two.CallID)
		require.NoError(t, err)
		assert.Equal(t, ivr.StateSupport, got.CurrentState)
	})

	t.Run("delete", func(t *testing.T) {
		id := prefix + "-d"
		require.NoError(t, store.Put(ctx, ivr.Session{CallID: id, CurrentState: ivr.StateMenu, UpdatedAt: stamp}))
		require.NoError(t, store.Delete(ctx, id))

		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("delete missing", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, prefix+"-never-stored"))
	})

	t.Run("count", func(t *testing.T) {
		before, err := store.Count(ctx)
		require.NoError(t, err)

		id := prefix + "-e"
		require.NoError(t, store.Put(ctx, ivr.Session{CallID: id, CurrentState: ivr.StateMenu, UpdatedAt: stamp}))
		after, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+1, after)

		require.NoError(t, store.Delete(ctx, id))
		final, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, final)
	})
}
