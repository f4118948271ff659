package specsim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_SetOnce(t *testing.T) {
	f := NewFuture[int]()
	assert.False(t, f.Settled())

	require.True(t, f.Set(1))
	require.False(t, f.Set(2))

	v, ok := f.Get()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestFuture_Done_ClosesOnSettle(t *testing.T) {
	f := NewFuture[string]()
	select {
	case <-f.Done():
		t.Fatal("done channel closed before Set")
	default:
	}
	f.Set("x")
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel did not close after Set")
	}
}

func TestFuture_Wait_ReturnsOnSettle(t *testing.T) {
	f := NewFuture[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Set(42)
	}()
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFuture_Wait_RespectsContextCancellation(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResult_IsFutureBool(t *testing.T) {
	var r *Result = NewFuture[bool]()
	r.Set(true)
	v, ok := r.Get()
	assert.True(t, ok)
	assert.True(t, v)
}
