package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceSourceReplay(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := NewSliceSource(
		Series{Symbol: "AAA", Bars: []Bar{NewBar(t0, 1, 1, 1, 1, 0), NewBar(t0.Add(time.Hour), 2, 2, 2, 2, 0)}},
		Series{Symbol: "BBB", Bars: []Bar{NewBar(t0.Add(time.Hour), 3, 3, 3, 3, 0)}},
	)

	assert.Equal(t, []string{"AAA", "BBB"}, src.Symbols())
	require.True(t, src.HasMore())

	b, ok := src.Peek("AAA")
	require.True(t, ok)
	assert.True(t, b.Time.Equal(t0))

	b, ok = src.Next("AAA")
	require.True(t, ok)
	assert.True(t, b.Time.Equal(t0))

	_, ok = src.Next("AAA")
	require.True(t, ok)
	_, ok = src.Next("AAA")
	assert.False(t, ok)
	assert.True(t, src.HasMore())

	_, ok = src.Next("BBB")
	require.True(t, ok)
	assert.False(t, src.HasMore())

	_, ok = src.Peek("missing")
	assert.False(t, ok)
}

func TestInRange(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 24, 12, 0, 0, 0, time.UTC)
	before := base.Add(-1 * time.Hour)
	after := base.Add(1 * time.Hour)

	tests := []struct {
		name string
		t    time.Time
		from time.Time
		to   time.Time
		want bool
	}{
		{"no range", base, time.Time{}, time.Time{}, true},
		{"within range", base, before, after, true},
		{"before range", before, base, after, false},
		{"after range", after, before, base, false},
		{"at from boundary", base, base, after, true},
		{"at to boundary", base, before, base, false},
		{"only from constraint", after, base, time.Time{}, true},
		{"only to constraint", before, time.Time{}, base, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, InRange(tt.t, tt.from, tt.to))
		})
	}
}
