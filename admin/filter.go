package admin

import (
	"fmt"

	"github.com/gobwas/glob"
)

// TableFilter decides which tables the document endpoint may read.
type TableFilter struct {
	tableGlobs []glob.Glob
}

// NewTableFilter compiles the allowlist. No patterns means no table matches.
func NewTableFilter(patterns []string) (*TableFilter, error) {
	filter := &TableFilter{
		tableGlobs: make([]glob.Glob, 0, len(patterns)),
	}

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid table pattern %q: %w", pattern, err)
		}
		filter.tableGlobs = append(filter.tableGlobs, g)
	}

	return filter, nil
}

// Match returns true if table matches any configured pattern
func (f *TableFilter) Match(table string) bool {
	for _, g := range f.tableGlobs {
		if g.Match(table) {
			return true
		}
	}
	return false
}
