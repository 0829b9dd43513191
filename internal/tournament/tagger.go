// Package tournament flags matchup rows that fall inside configured
// tournament windows.
package tournament

import (
	"time"

	"matchset/pkg/contracts/domain"
)

// Tag returns a copy of rows where IsTournamentGame is true iff the row's
// date lies within any interval's closed bounds. The interval list is
// whatever the caller configured; nothing about a particular season is
// assumed. Input rows are not mutated and tagging an already tagged table
// yields the same flags.
func Tag(rows []domain.MatchupRow, intervals []domain.TournamentInterval) []domain.MatchupRow {
	tagged := make([]domain.MatchupRow, len(rows))
	for i, row := range rows {
		row.IsTournamentGame = inAnyInterval(row.Date, intervals)
		tagged[i] = row
	}
	return tagged
}

func inAnyInterval(date time.Time, intervals []domain.TournamentInterval) bool {
	for _, interval := range intervals {
		if interval.Contains(date) {
			return true
		}
	}
	return false
}
