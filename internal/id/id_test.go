package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorDeterministic(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	a := NewGenerator(42)
	b := NewGenerator(42)

	for i := 0; i < 5; i++ {
		assert.Equal(t, a.New(ts), b.New(ts))
	}

	c := NewGenerator(7)
	assert.NotEqual(t, NewGenerator(42).New(ts), c.New(ts))
}

func TestGeneratorMonotonic(t *testing.T) {
	g := NewGenerator(1)
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	prev := g.New(ts)
	for i := 0; i < 100; i++ {
		next := g.New(ts)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestGeneratorTimestamp(t *testing.T) {
	g := NewGenerator(1)
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	parsed, err := ulid.Parse(g.New(ts))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(ts), parsed.Time())

	parsed, err = ulid.Parse(g.New(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), parsed.Time())
}
