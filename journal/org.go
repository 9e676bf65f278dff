package journal

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"metric": func(m map[string]float64, name string) float64 { return m[name] },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.Format("2006-01-02")
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.UTC().Format("2006-01-02 Mon 15:04")
	},
}

type orgView struct {
	RunRecord
	Trades      []TradeRecord
	MetricNames []string
}

var runOrgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbols}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:SYMBOLS:     {{.Symbols}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:START_EQ:    {{printf "%.2f" .InitialCapital}}
:END_EQ:      {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" (mul100 (metric .Metrics "total_return"))}}
:MAX_DD_PCT:  {{printf "%.2f" (mul100 (metric .Metrics "max_drawdown"))}}
:TRADES:      {{printf "%.0f" (metric .Metrics "total_trades")}}
:WIN_RATE:    {{printf "%.2f" (mul100 (metric .Metrics "win_rate"))}}
:CREATED:     [{{stamp .Created}}]
:END:
{{- if .Error}}

*Run aborted:* {{.Error}}
{{- end}}

** Metrics
| Metric | Value |
|--------+-------|
{{- range .MetricNames}}
| {{.}} | {{printf "%.4f" (metric $.Metrics .)}} |
{{- end}}

** Trades
{{- if .Trades}}
| Symbol | Side | Qty | Opened | Closed | P/L |
|--------+------+-----+--------+--------+-----|
{{- range .Trades}}
| {{.Symbol}} | {{.Side}} | {{printf "%g" .Quantity}} | {{stamp .OpenTime}} | {{stamp .CloseTime}} | {{printf "%.2f" .RealizedPL}} |
{{- end}}
{{- else}}
No completed trades.
{{- end}}
{{- if .Config}}

** Configuration
#+begin_src yaml
{{printf "%s" .Config}}
#+end_src
{{- end}}
`

// FormatRunOrg renders a run and its trades as an Org-mode entry.
func FormatRunOrg(r RunRecord, trades []TradeRecord) (string, error) {
	names := make([]string, 0, len(r.Metrics))
	for n := range r.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	if err := runOrgTemplate.Execute(&buf, orgView{RunRecord: r, Trades: trades, MetricNames: names}); err != nil {
		return "", fmt.Errorf("journal: render org for run %s: %w", r.RunID, err)
	}
	return buf.String(), nil
}

// WriteRunOrg renders the run summary into path.
func WriteRunOrg(path string, r RunRecord, trades []TradeRecord) error {
	s, err := FormatRunOrg(r, trades)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644)
}
