package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LoadCSV reads one symbol's bars from a CSV file:
//
//	time,open,high,low,close[,volume]
//
// where time is RFC3339 or RFC3339Nano. A single header row ("time,...")
// is allowed and empty rows are skipped.
//
// Rows outside [from, to) are dropped. Rows whose time parses but whose
// prices do not are kept as zero-priced bars so the replay loop reports
// them as malformed at their own tick. Rows with an unreadable time cannot
// be placed on the clock; they are dropped and counted in skipped.
func LoadCSV(symbol, path string, from, to time.Time) (ser Series, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, 0, err
	}
	defer f.Close()

	ser, skipped, err = ReadCSV(symbol, f, from, to)
	if err != nil {
		return Series{}, skipped, fmt.Errorf("load %s: %w", path, err)
	}
	return ser, skipped, nil
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(symbol string, r io.Reader, from, to time.Time) (Series, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	ser := Series{Symbol: symbol}
	skipped := 0
	sawFirst := false

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return ser, skipped, nil
		}
		if err != nil {
			return Series{}, skipped, err
		}
		if len(row) == 0 {
			continue
		}

		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		b, err := parseBarRow(row)
		if err != nil {
			if b.Time.IsZero() {
				skipped++
				continue
			}
		}
		if !InRange(b.Time, from, to) {
			continue
		}
		ser.Bars = append(ser.Bars, b)
	}
}

// parseBarRow returns the bar and the first parse error. When only the
// prices fail, the returned bar still carries its timestamp.
func parseBarRow(row []string) (Bar, error) {
	if len(row) < 5 {
		return Bar{}, fmt.Errorf("%w: need at least 5 columns, got %d", ErrMalformedBar, len(row))
	}

	ts := strings.TrimSpace(row[0])
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return Bar{}, fmt.Errorf("%w: bad time %q: %v", ErrMalformedBar, ts, err)
		}
		t = t2
	}

	b := Bar{Time: t}
	fields := []*decimal.Decimal{&b.Open, &b.High, &b.Low, &b.Close}
	for i, dst := range fields {
		v, err := decimal.NewFromString(strings.TrimSpace(row[i+1]))
		if err != nil {
			return Bar{Time: t}, fmt.Errorf("%w: bad price %q: %v", ErrMalformedBar, row[i+1], err)
		}
		*dst = v
	}
	if len(row) > 5 && strings.TrimSpace(row[5]) != "" {
		v, err := decimal.NewFromString(strings.TrimSpace(row[5]))
		if err != nil {
			return Bar{Time: t}, fmt.Errorf("%w: bad volume %q: %v", ErrMalformedBar, row[5], err)
		}
		b.Volume = v
	}
	return b, nil
}
