package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cie10-predict-server/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.PanicLevel)
	return log
}

type countingLookup struct {
	descriptions map[string]string
	err          error
	calls        int
	lastCodes    []string
}

func (c *countingLookup) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	c.calls++
	c.lastCodes = codes
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]string)
	for _, code := range codes {
		if desc, ok := c.descriptions[code]; ok {
			out[code] = desc
		}
	}
	return out, nil
}

func memoryOnlyConfig() *domain.CacheConfig {
	return &domain.CacheConfig{
		MemorySize: 16,
		MemoryTTL:  time.Minute,
	}
}

func TestMemoryTierServesRepeats(t *testing.T) {
	next := &countingLookup{descriptions: map[string]string{
		"A09": "Diarrea",
		"J18": "Neumonía",
	}}
	c := NewDescriptionCache(next, memoryOnlyConfig(), testLogger())

	got, err := c.Descriptions(context.Background(), []string{"A09", "J18"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, next.calls)

	// Second call is served entirely from memory.
	got, err = c.Descriptions(context.Background(), []string{"A09", "J18"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, next.calls)
}

func TestOnlyMissesReachTheStore(t *testing.T) {
	next := &countingLookup{descriptions: map[string]string{
		"A09": "Diarrea",
		"J18": "Neumonía",
	}}
	c := NewDescriptionCache(next, memoryOnlyConfig(), testLogger())

	_, err := c.Descriptions(context.Background(), []string{"A09"})
	require.NoError(t, err)

	_, err = c.Descriptions(context.Background(), []string{"A09", "J18"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, []string{"J18"}, next.lastCodes)
}

func TestUnknownCodesAreNotCached(t *testing.T) {
	next := &countingLookup{descriptions: map[string]string{}}
	c := NewDescriptionCache(next, memoryOnlyConfig(), testLogger())

	got, err := c.Descriptions(context.Background(), []string{"Z99"})
	require.NoError(t, err)
	assert.Empty(t, got)

	// A code the store doesn't know is asked again, not negatively cached.
	_, err = c.Descriptions(context.Background(), []string{"Z99"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestLookupErrorPropagates(t *testing.T) {
	next := &countingLookup{err: errors.New("breaker open")}
	c := NewDescriptionCache(next, memoryOnlyConfig(), testLogger())

	_, err := c.Descriptions(context.Background(), []string{"A09"})
	require.Error(t, err)
}

func TestAllHitsSkipTheStore(t *testing.T) {
	next := &countingLookup{descriptions: map[string]string{"A09": "Diarrea"}}
	c := NewDescriptionCache(next, memoryOnlyConfig(), testLogger())

	_, err := c.Descriptions(context.Background(), []string{"A09"})
	require.NoError(t, err)

	got, err := c.Descriptions(context.Background(), []string{"A09"})
	require.NoError(t, err)
	assert.Equal(t, "Diarrea", got["A09"])
	assert.Equal(t, 1, next.calls)
}
