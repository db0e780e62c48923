package grid

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
)

// Canonical renders a row as the strings used to decide whether it
// changed. Absent values, empty text and zero dates compare equal.
func Canonical(v catalog.Values) []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = strings.TrimSpace(catalog.FormatValue(x))
	}
	return out
}

// SameValues compares two rows by their canonical strings.
func SameValues(a, b catalog.Values) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var x, y any
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if strings.TrimSpace(catalog.FormatValue(x)) != strings.TrimSpace(catalog.FormatValue(y)) {
			return false
		}
	}
	return true
}

// Display renders a cell for the host, cut to width grapheme clusters
// when width is positive.
func Display(c catalog.Column, v any, width int) string {
	s := catalog.FormatValue(v)
	if c.Kind == catalog.KindPath {
		s = strings.ReplaceAll(s, "\\", "/")
	}
	return Truncate(s, width)
}

// Truncate cuts s to at most width grapheme clusters, ending with an
// ellipsis when anything was dropped.
func Truncate(s string, width int) string {
	if width <= 0 || uniseg.GraphemeClusterCount(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < width-1 && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString("…")
	return b.String()
}

// parseCell turns what the host reported for a cell into the column's value.
func parseCell(c catalog.Column, v any) (any, error) {
	var (
		out any
		err error
	)
	switch c.Kind {
	case catalog.KindDate, catalog.KindPlain, catalog.KindForeignKey:
		if s, ok := v.(string); ok {
			out, err = catalog.ParseValue(c, s)
		} else {
			out, err = catalog.Normalize(c, v)
		}
	case catalog.KindPath:
		s := strings.TrimSpace(catalog.FormatValue(v))
		s = strings.Trim(s, "\"")
		if s == "" {
			return nil, nil
		}
		out = s
	default:
		return nil, fmt.Errorf("%s: unsupported column kind %s", c.Name, c.Kind)
	}
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return out, nil
}

// rowCheck describes a row about to be committed.
type rowCheck struct {
	table  catalog.Table
	values catalog.Values
	// auto marks columns filled at commit time (parent link, sequences).
	auto map[int]bool
}

// validateRow runs the client-side checks. It returns the offending
// column and a validation error, or -1 and nil.
func validateRow(ctx context.Context, env Env, rc rowCheck) (int, error) {
	for i, c := range rc.table.Columns {
		if rc.auto[i] {
			continue
		}
		var v any
		if i < len(rc.values) {
			v = rc.values[i]
		}
		text := strings.TrimSpace(catalog.FormatValue(v))
		if c.MaxLength > 0 && uniseg.GraphemeClusterCount(text) > c.MaxLength {
			return i, apperrors.Validation(fmt.Sprintf("%s is longer than %d characters", c.Name, c.MaxLength))
		}

		switch c.Kind {
		case catalog.KindForeignKey:
			ref, err := checkReference(ctx, env, c, text)
			if err != nil {
				return i, err
			}
			if ref != nil && i < len(rc.values) {
				rc.values[i] = ref
			}
		case catalog.KindPath:
			if text != "" && env.Paths != nil {
				if err := env.Paths.Check(text); err != nil {
					return i, apperrors.Validation(fmt.Sprintf("%s: %v", c.Name, err))
				}
			}
		case catalog.KindDate:
			if text != "" {
				if _, err := catalog.ParseValue(c, text); err != nil {
					return i, apperrors.Validation(err.Error())
				}
			}
		}

		if text == "" && (c.Required || (c.PrimaryKey && !c.Sequence)) {
			return i, apperrors.Validation(fmt.Sprintf("%s is required", c.Name))
		}
	}
	return -1, nil
}

// checkReference looks text up among the referenced values and returns
// the stored value it names. Stores compare references exactly, so a
// match that differs only in case is replaced by the stored spelling.
func checkReference(ctx context.Context, env Env, c catalog.Column, text string) (any, error) {
	if env.References == nil {
		return nil, nil
	}
	if text == "" && !c.Required {
		return nil, nil
	}
	refs, err := env.References.References(ctx, c.ReferencedTable, c.ReferencedColumn)
	if err != nil {
		return nil, apperrors.Unexpected(fmt.Errorf("list %s.%s: %w", c.ReferencedTable, c.ReferencedColumn, err))
	}
	if len(refs) == 0 {
		return nil, apperrors.Validation(fmt.Sprintf("%s: there are no %s to choose from", c.Name, c.ReferencedTable))
	}
	if text == "" {
		return nil, nil
	}
	var folded []any
	for _, r := range refs {
		ref := strings.TrimSpace(catalog.FormatValue(r))
		if ref == text {
			return r, nil
		}
		if strings.EqualFold(ref, text) {
			folded = append(folded, r)
		}
	}
	switch len(folded) {
	case 0:
		return nil, apperrors.Validation(fmt.Sprintf("%s: %q is not in %s", c.Name, text, c.ReferencedTable))
	case 1:
		return folded[0], nil
	default:
		return nil, apperrors.Validation(fmt.Sprintf("%s: %q matches several %s; type it exactly", c.Name, text, c.ReferencedTable))
	}
}
