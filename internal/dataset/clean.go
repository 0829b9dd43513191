// Package dataset loads per-entity game logs from disk and provides the
// cleaning pass every pipeline stage applies to its output table.
package dataset

// Record is the contract shared by every table shape the pipeline cleans:
// raw game records, derived records and merged matchup rows.
type Record interface {
	// HasNull reports whether the record carries an undefined value.
	HasNull() bool
	// Fingerprint renders every field canonically for duplicate detection.
	Fingerprint() string
}

// Clean drops records carrying null values, then drops exact duplicates,
// keeping the first occurrence. The input slice is never mutated. Cleaning
// is idempotent and never fails; a fully dropped table is a valid outcome.
func Clean[T Record](records []T) []T {
	cleaned := make([]T, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.HasNull() {
			continue
		}
		fp := r.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		cleaned = append(cleaned, r)
	}
	return cleaned
}
