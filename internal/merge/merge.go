// Package merge pairs per-entity derived tables into matchup rows carrying
// both participants' stats: the perspective-merge stage of the pipeline.
package merge

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"matchset/internal/dataset"
	apperrors "matchset/internal/errors"
	"matchset/pkg/contracts/domain"
)

// Merger joins the away perspective of every game with its home counterpart
// through an inner equi-join on the identifier fields.
type Merger struct {
	identifierFields []string
	logger           *slog.Logger
}

// NewMerger creates a merger joining on the given identifier fields. The
// fields must uniquely identify a single game (date + home + away at least).
func NewMerger(identifierFields []string, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{identifierFields: identifierFields, logger: logger}
}

// Merge builds one matchup row per game appearing in both an away-side and
// a home-side derived table. Games with no counterpart on the other side
// are excluded, typically because one participant lacked warm-up history.
// A join key occurring more than once on either side is a data-integrity
// failure: the source cannot say which row is the real game, so the merge
// refuses to pick one. Rows come back ascending by date, 0-based contiguous.
func (m *Merger) Merge(ctx context.Context, entityDerived map[string][]domain.DerivedRecord) ([]domain.MatchupRow, error) {
	if len(entityDerived) == 0 {
		return nil, apperrors.ErrNoEntities
	}
	start := time.Now()

	entities := make([]string, 0, len(entityDerived))
	for entity := range entityDerived {
		entities = append(entities, entity)
	}
	slices.Sort(entities)

	var awayTable, homeTable []domain.DerivedRecord
	for _, entity := range entities {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		table := entityDerived[entity]
		away := sideSubsequence(table, domain.FieldAway, entity)
		home := sideSubsequence(table, domain.FieldHome, entity)
		m.logger.DebugContext(ctx, "entity perspectives split",
			"entity", entity,
			"away_rows", len(away),
			"home_rows", len(home),
		)
		awayTable = append(awayTable, away...)
		homeTable = append(homeTable, home...)
	}

	homeByKey := make(map[string]domain.DerivedRecord, len(homeTable))
	for _, rec := range homeTable {
		key := m.joinKey(rec.Identifiers)
		if _, dup := homeByKey[key]; dup {
			return nil, apperrors.NewIntegrityError(key, "home", m.countKey(homeTable, key))
		}
		homeByKey[key] = rec
	}

	seenAway := make(map[string]struct{}, len(awayTable))
	var rows []domain.MatchupRow
	for _, away := range awayTable {
		key := m.joinKey(away.Identifiers)
		if _, dup := seenAway[key]; dup {
			return nil, apperrors.NewIntegrityError(key, "away", m.countKey(awayTable, key))
		}
		seenAway[key] = struct{}{}

		home, ok := homeByKey[key]
		if !ok {
			continue
		}
		rows = append(rows, domain.MatchupRow{
			Date:        away.Date,
			Identifiers: maps.Clone(away.Identifiers),
			Home: domain.SideStats{
				Metrics:   maps.Clone(home.Metrics),
				Summaries: maps.Clone(home.Summaries),
			},
			Away: domain.SideStats{
				Metrics:   maps.Clone(away.Metrics),
				Summaries: maps.Clone(away.Summaries),
			},
		})
	}

	// uniform stage-output pass; the join guarantees it drops nothing
	rows = dataset.Clean(rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})

	m.logger.InfoContext(ctx, "perspective merge completed",
		"duration", time.Since(start),
		"away_rows", len(awayTable),
		"home_rows", len(homeTable),
		"matchups", len(rows),
	)
	return rows, nil
}

// sideSubsequence selects the games the entity played on the given side and
// runs the cleaning pass over the selection before it joins the big table.
func sideSubsequence(table []domain.DerivedRecord, side, entity string) []domain.DerivedRecord {
	var out []domain.DerivedRecord
	for _, rec := range table {
		if rec.Identifiers[side] == entity {
			out = append(out, rec)
		}
	}
	return dataset.Clean(out)
}

// joinKey renders the identifier fields in configured order.
func (m *Merger) joinKey(identifiers map[string]string) string {
	parts := make([]string, len(m.identifierFields))
	for i, field := range m.identifierFields {
		parts[i] = identifiers[field]
	}
	return strings.Join(parts, "|")
}

func (m *Merger) countKey(table []domain.DerivedRecord, key string) int {
	n := 0
	for _, rec := range table {
		if m.joinKey(rec.Identifiers) == key {
			n++
		}
	}
	return n
}
