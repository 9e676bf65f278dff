package market

import "time"

// Source replays time-ordered bars per symbol.
//
// Peek must not consume. HasMore reports whether any symbol still has bars.
type Source interface {
	Symbols() []string
	HasMore() bool
	Peek(symbol string) (Bar, bool)
	Next(symbol string) (Bar, bool)
}

// Series is an explicit (symbol, bars) pairing.
type Series struct {
	Symbol string
	Bars   []Bar
}

// SliceSource is an in-memory Source over pre-loaded series.
// Symbols are replayed in the order they were given.
type SliceSource struct {
	symbols []string
	bars    map[string][]Bar
	pos     map[string]int
}

func NewSliceSource(series ...Series) *SliceSource {
	s := &SliceSource{
		bars: make(map[string][]Bar, len(series)),
		pos:  make(map[string]int, len(series)),
	}
	for _, ser := range series {
		if _, ok := s.bars[ser.Symbol]; !ok {
			s.symbols = append(s.symbols, ser.Symbol)
		}
		s.bars[ser.Symbol] = append(s.bars[ser.Symbol], ser.Bars...)
	}
	return s
}

func (s *SliceSource) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

func (s *SliceSource) HasMore() bool {
	for _, sym := range s.symbols {
		if s.pos[sym] < len(s.bars[sym]) {
			return true
		}
	}
	return false
}

func (s *SliceSource) Peek(symbol string) (Bar, bool) {
	bars := s.bars[symbol]
	i := s.pos[symbol]
	if i >= len(bars) {
		return Bar{}, false
	}
	return bars[i], true
}

func (s *SliceSource) Next(symbol string) (Bar, bool) {
	b, ok := s.Peek(symbol)
	if ok {
		s.pos[symbol]++
	}
	return b, ok
}

// InRange reports whether t lies in [from, to). Zero bounds are open.
func InRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
