package breaker

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.PanicLevel)
	return log
}

type flakyLookup struct {
	err   error
	calls int
}

func (f *flakyLookup) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]string{"A09": "Diarrea"}, nil
}

func TestPassThroughOnSuccess(t *testing.T) {
	next := &flakyLookup{}
	b := NewDescriptionBreaker(next, testLogger())

	got, err := b.Descriptions(context.Background(), []string{"A09"})
	require.NoError(t, err)
	assert.Equal(t, "Diarrea", got["A09"])
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	next := &flakyLookup{err: errors.New("connection refused")}
	b := NewDescriptionBreaker(next, testLogger())

	for i := 0; i < 5; i++ {
		_, err := b.Descriptions(context.Background(), []string{"A09"})
		require.Error(t, err)
	}
	callsWhenOpen := next.calls

	// An open breaker fails fast without reaching the store.
	_, err := b.Descriptions(context.Background(), []string{"A09"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, callsWhenOpen, next.calls)
}
