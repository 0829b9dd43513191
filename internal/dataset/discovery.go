package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Format identifies the on-disk encoding of a game log.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SourceFile is one discovered game log. Entity comes from the file stem:
// team_stats/boston-celtics.csv holds the log of entity "boston-celtics".
type SourceFile struct {
	Entity  string
	Path    string
	Format  Format
	Size    int64
	ModTime time.Time
}

// Discover lists the game logs in dir, one file per entity. Files that are
// neither CSV nor Excel workbooks are skipped, as are hidden files and
// Excel lock files. An entity appearing with more than one extension is
// rejected rather than picking a source silently.
func Discover(dir string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", dir, err)
	}

	byEntity := make(map[string]SourceFile, len(entries))
	var files []SourceFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}

		var format Format
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv":
			format = FormatCSV
		case ".xlsx", ".xlsm":
			format = FormatXLSX
		default:
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		entity := strings.TrimSuffix(name, filepath.Ext(name))
		if prior, ok := byEntity[entity]; ok {
			return nil, fmt.Errorf("entity %q has multiple game logs: %s and %s",
				entity, prior.Path, filepath.Join(dir, name))
		}

		file := SourceFile{
			Entity:  entity,
			Path:    filepath.Join(dir, name),
			Format:  format,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		byEntity[entity] = file
		files = append(files, file)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Entity < files[j].Entity
	})

	return files, nil
}
