package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarValidate(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		bar     Bar
		wantErr bool
	}{
		{"valid", NewBar(ts, 100, 105, 99, 102, 1000), false},
		{"flat bar", NewBar(ts, 100, 100, 100, 100, 0), false},
		{"zero time", NewBar(time.Time{}, 100, 105, 99, 102, 1000), true},
		{"high below close", NewBar(ts, 100, 101, 99, 102, 1000), true},
		{"low above open", NewBar(ts, 100, 105, 101, 102, 1000), true},
		{"negative volume", NewBar(ts, 100, 105, 99, 102, -1), true},
		{"zero close", Bar{Time: ts, Open: decimal.NewFromInt(1), High: decimal.NewFromInt(1), Low: decimal.NewFromInt(1)}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.bar.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedBar)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
