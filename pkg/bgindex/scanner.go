package bgindex

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/symgraph/pkg/parser"
)

// Scan enumerates every indexable file under root, skipping excluded
// paths before stat (directories matching an exclude pattern are never
// descended into) and dropping files larger than maxFileSize. The result
// is sorted so EnsureUpToDate sees a platform-independent, stable
// candidate order.
func Scan(root string, excludePatterns []string, maxFileSize int64) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(excludePatterns, rel) || matchesAny(excludePatterns, path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if !parser.Indexable(path) {
			return nil
		}

		if maxFileSize > 0 {
			info, err := d.Info()
			if err == nil && info.Size() > maxFileSize {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ValidatePatterns checks every pattern in patterns for glob-syntax
// validity, returning the first invalid one's error.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return &invalidPatternError{pattern: p}
		}
	}
	return nil
}

type invalidPatternError struct {
	pattern string
}

func (e *invalidPatternError) Error() string {
	return "invalid glob pattern: " + e.pattern
}
