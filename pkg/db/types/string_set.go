package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
)

// StringSet stores an unordered set of identifiers as a Postgres text[] literal.
// The same representation round-trips through sqlite TEXT columns, which keeps
// the in-memory test databases on the same model definitions.
type StringSet []string

func (s *StringSet) Scan(src any) error {
	if src == nil {
		*s = StringSet{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return s.parseFromString(v)
	case []byte:
		return s.parseFromString(string(v))
	default:
		return fmt.Errorf("StringSet: unsupported Scan type %T", src)
	}
}

func (s StringSet) Value() (driver.Value, error) {
	// Postgres array literal: {a,b}
	if len(s) == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, len(s))
	for _, item := range s {
		parts = append(parts, strings.TrimSpace(item))
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Contains reports membership, case-sensitively.
func (s StringSet) Contains(item string) bool {
	for _, candidate := range s {
		if candidate == item {
			return true
		}
	}
	return false
}

// Normalized returns a sorted, deduplicated, trimmed copy.
func (s StringSet) Normalized() StringSet {
	seen := map[string]struct{}{}
	out := make(StringSet, 0, len(s))
	for _, item := range s {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func (s *StringSet) parseFromString(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "{}" || raw == "" {
		*s = StringSet{}
		return nil
	}
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if strings.TrimSpace(raw) == "" {
		*s = StringSet{}
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make(StringSet, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.Trim(part, `"`))
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	*s = out
	return nil
}
