package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_SettleResolved(t *testing.T) {
	f := newFuture()
	require.Equal(t, Pending, f.State())

	var gotState FutureState
	var gotValue any
	var gotErr error
	f.OnSettle(func(state FutureState, value any, err error) {
		gotState, gotValue, gotErr = state, value, err
	})

	f.settle("ok", nil)

	assert.Equal(t, Resolved, f.State())
	assert.Equal(t, "ok", f.Value())
	assert.NoError(t, f.Err())
	assert.Equal(t, Resolved, gotState)
	assert.Equal(t, "ok", gotValue)
	assert.NoError(t, gotErr)
}

func TestFuture_SettleRejected(t *testing.T) {
	f := newFuture()
	wantErr := errors.New("boom")
	f.settle(nil, wantErr)

	assert.Equal(t, Rejected, f.State())
	assert.Nil(t, f.Value())
	assert.Equal(t, wantErr, f.Err())
}

func TestFuture_SettleIsIdempotent(t *testing.T) {
	f := newFuture()
	calls := 0
	f.OnSettle(func(FutureState, any, error) { calls++ })

	f.settle(1, nil)
	f.settle(2, errors.New("ignored"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, Resolved, f.State())
	assert.Equal(t, 1, f.Value())
}

func TestFuture_OnSettleAfterSettleRunsImmediately(t *testing.T) {
	f := newFuture()
	f.settle("done", nil)

	called := false
	f.OnSettle(func(state FutureState, value any, err error) {
		called = true
		assert.Equal(t, Resolved, state)
		assert.Equal(t, "done", value)
	})

	assert.True(t, called)
}
