package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/ajitpratap0/stagesync/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryingWriter_ResetsAfterSuccess(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	w := NewRetryingWriter(testutil.NewMemoryDestination(), 2, 0, testutil.TestLogger(t), nil)

	// each Do fails once then succeeds; with a ceiling of two the budget
	// would run out if failures carried over between steps
	for i := 0; i < 3; i++ {
		failed := false
		err := w.Do(ctx, nil, "step", func(context.Context, core.Conn) error {
			if !failed {
				failed = true
				return errors.New(errors.ErrorTypeWriteFailed, "transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, w.Failures())
	}
}

func TestRetryingWriter_SingleAttemptCeiling(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dest := testutil.NewMemoryDestination()
	w := NewRetryingWriter(dest, 1, time.Hour, testutil.TestLogger(t), nil)

	calls := 0
	record := models.DocumentFromPairs("id", 9)
	err := w.Do(ctx, record, "flush", func(context.Context, core.Conn) error {
		calls++
		return errors.New(errors.ErrorTypeWriteFailed, "boom")
	})

	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, 1, calls, "no retry and no delay when the ceiling is one")
	assert.Equal(t, 1, fatal.Attempts)
	assert.Equal(t, record, fatal.Record)
	assert.Contains(t, fatal.Error(), "1 consecutive failures in flush step")
	assert.Equal(t, 1, dest.Opens())
}

func TestRetryingWriter_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w := NewRetryingWriter(testutil.NewMemoryDestination(), 5, time.Hour, testutil.TestLogger(t), nil)

	start := time.Now()
	err := w.Do(ctx, nil, "flush", func(context.Context, core.Conn) error {
		return errors.New(errors.ErrorTypeWriteFailed, "boom")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRetryingWriter_ClosesFailedConnection(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dest := testutil.NewMemoryDestination()
	w := NewRetryingWriter(dest, 3, 0, testutil.TestLogger(t), nil)

	var conns []core.Conn
	err := w.Do(ctx, nil, "flush", func(_ context.Context, conn core.Conn) error {
		conns = append(conns, conn)
		if len(conns) == 1 {
			return errors.New(errors.ErrorTypeWriteFailed, "boom")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.NotSame(t, conns[0], conns[1])
	assert.Equal(t, 1, dest.Closes())

	require.NoError(t, w.Close(ctx))
	assert.Equal(t, 2, dest.Closes())
	require.NoError(t, w.Close(ctx))
}
