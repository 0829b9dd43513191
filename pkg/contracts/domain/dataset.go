package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Identifier columns every game log must carry. Any further identifier
// columns (league, game id) are declared through configuration.
const (
	FieldDate = "date"
	FieldHome = "home"
	FieldAway = "away"
)

// SummaryKind identifies one of the rolling summaries derived for every
// metric field.
type SummaryKind string

const (
	SummarySMA SummaryKind = "sma"
	SummaryCMA SummaryKind = "cma"
	SummaryEMA SummaryKind = "ema"
)

// SummaryKinds returns the derived summary kinds in export order.
func SummaryKinds() []SummaryKind {
	return []SummaryKind{SummarySMA, SummaryCMA, SummaryEMA}
}

// Span is the rolling window length in games.
type Span int

// IsValid reports whether the span is usable as a window length.
func (s Span) IsValid() bool {
	return s > 0
}

// Alpha returns the exponential smoothing factor 2/(span+1).
func (s Span) Alpha() float64 {
	return 2.0 / (float64(s) + 1.0)
}

// GameRecord is one game from one entity's log. Identifier fields stay
// untransformed strings; metric fields are numeric and subject to windowing.
// Date holds the parsed value of the date identifier.
type GameRecord struct {
	Entity      string             `json:"entity" validate:"required"`
	Date        time.Time          `json:"date" validate:"required"`
	Identifiers map[string]string  `json:"identifiers" validate:"required"`
	Metrics     map[string]float64 `json:"metrics"`
}

// HasNull reports whether any metric value is NaN.
func (r GameRecord) HasNull() bool {
	for _, v := range r.Metrics {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Fingerprint returns a canonical rendering of every field, used to detect
// exact duplicate records.
func (r GameRecord) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.Entity)
	b.WriteByte('|')
	b.WriteString(r.Date.Format(time.DateOnly))
	for _, k := range sortedKeys(r.Identifiers) {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.Identifiers[k])
	}
	writeFloatMap(&b, r.Metrics)
	return b.String()
}

// Summaries is the derived triple for one metric field. NaN marks a value
// that is undefined at its position (insufficient warm-up); cleaned outputs
// never carry NaN.
type Summaries struct {
	SMA float64 `json:"sma"`
	CMA float64 `json:"cma"`
	EMA float64 `json:"ema"`
}

// Get returns the value for the given summary kind.
func (s Summaries) Get(kind SummaryKind) float64 {
	switch kind {
	case SummarySMA:
		return s.SMA
	case SummaryCMA:
		return s.CMA
	case SummaryEMA:
		return s.EMA
	}
	return math.NaN()
}

// HasNull reports whether any component of the triple is NaN.
func (s Summaries) HasNull() bool {
	return math.IsNaN(s.SMA) || math.IsNaN(s.CMA) || math.IsNaN(s.EMA)
}

// DerivedRecord is a game record extended with the lag-1 rolling summaries
// of every metric field. The raw metric values stay alongside the triples;
// they hold the game's actual outcome, which the training table needs as
// its label. Every triple reflects strictly prior games only.
type DerivedRecord struct {
	Entity      string               `json:"entity"`
	Date        time.Time            `json:"date"`
	Identifiers map[string]string    `json:"identifiers"`
	Metrics     map[string]float64   `json:"metrics"`
	Summaries   map[string]Summaries `json:"summaries"`
}

// HasNull reports whether any metric value or derived triple carries NaN.
func (r DerivedRecord) HasNull() bool {
	for _, v := range r.Metrics {
		if math.IsNaN(v) {
			return true
		}
	}
	for _, s := range r.Summaries {
		if s.HasNull() {
			return true
		}
	}
	return false
}

// Fingerprint returns a canonical rendering of every field, used to detect
// exact duplicate records.
func (r DerivedRecord) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.Entity)
	b.WriteByte('|')
	b.WriteString(r.Date.Format(time.DateOnly))
	for _, k := range sortedKeys(r.Identifiers) {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.Identifiers[k])
	}
	writeFloatMap(&b, r.Metrics)
	writeSummaries(&b, r.Summaries)
	return b.String()
}

// SideStats carries one participant's view of a game: the raw metric values
// it produced in that game and the lag-1 summaries it brought into it.
type SideStats struct {
	Metrics   map[string]float64   `json:"metrics"`
	Summaries map[string]Summaries `json:"summaries"`
}

// HasNull reports whether any metric value or triple component is NaN.
func (s SideStats) HasNull() bool {
	for _, v := range s.Metrics {
		if math.IsNaN(v) {
			return true
		}
	}
	for _, sum := range s.Summaries {
		if sum.HasNull() {
			return true
		}
	}
	return false
}

// MatchupRow is one game with both participants' stats attached: the raw
// outcome each side produced and the pre-game summaries each side carried in.
type MatchupRow struct {
	Date             time.Time         `json:"date"`
	Identifiers      map[string]string `json:"identifiers"`
	Home             SideStats         `json:"home"`
	Away             SideStats         `json:"away"`
	IsTournamentGame bool              `json:"is_tournament_game"`
}

// HasNull reports whether either side carries a NaN value.
func (r MatchupRow) HasNull() bool {
	return r.Home.HasNull() || r.Away.HasNull()
}

// Fingerprint returns a canonical rendering of every field, used to detect
// exact duplicate rows.
func (r MatchupRow) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.Date.Format(time.DateOnly))
	for _, k := range sortedKeys(r.Identifiers) {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.Identifiers[k])
	}
	b.WriteString("|home")
	writeFloatMap(&b, r.Home.Metrics)
	writeSummaries(&b, r.Home.Summaries)
	b.WriteString("|away")
	writeFloatMap(&b, r.Away.Metrics)
	writeSummaries(&b, r.Away.Summaries)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(r.IsTournamentGame))
	return b.String()
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func writeFloatMap(b *strings.Builder, metrics map[string]float64) {
	for _, k := range sortedKeys(metrics) {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(metrics[k]))
	}
}

func writeSummaries(b *strings.Builder, summaries map[string]Summaries) {
	for _, k := range sortedKeys(summaries) {
		s := summaries[k]
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(s.SMA))
		b.WriteByte(',')
		b.WriteString(formatValue(s.CMA))
		b.WriteByte(',')
		b.WriteString(formatValue(s.EMA))
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// TournamentInterval is a closed calendar-date range [Start, End].
type TournamentInterval struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// IsValid reports whether the interval bounds are ordered.
func (ti TournamentInterval) IsValid() bool {
	return !ti.End.Before(ti.Start)
}

// Contains reports whether t falls within the closed bounds of the interval.
func (ti TournamentInterval) Contains(t time.Time) bool {
	return !t.Before(ti.Start) && !t.After(ti.End)
}
