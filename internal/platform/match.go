// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Row evaluation for engines that serve Query directly (the in-process
// platform and the emulator). Rows are JSON objects decoded to map[string]any.

// Matches reports whether row satisfies every condition.
func (q Query) Matches(row map[string]any) bool {
	for _, c := range q.Conditions {
		if !c.Matches(row) {
			return false
		}
	}
	return true
}

// Apply filters, sorts and limits rows. The input slice is not modified.
func (q Query) Apply(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if q.Matches(row) {
			out = append(out, row)
		}
	}
	if len(q.Orders) > 0 {
		slices.SortStableFunc(out, func(a, b map[string]any) int {
			for _, o := range q.Orders {
				c := CompareValues(a[o.Column], b[o.Column])
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	if q.RowLimit > 0 && len(out) > q.RowLimit {
		out = out[:q.RowLimit]
	}
	return out
}

// Matches evaluates one condition against row. Missing columns are null.
func (c Condition) Matches(row map[string]any) bool {
	v := row[c.Column]

	switch c.Op {
	case OpIs:
		switch strings.ToLower(c.Value) {
		case "null":
			return v == nil
		case "true", "false":
			b, ok := v.(bool)
			return ok && strconv.FormatBool(b) == strings.ToLower(c.Value)
		default:
			return false
		}
	case OpIn:
		if v == nil {
			return false
		}
		for _, candidate := range c.Values {
			if CompareValues(v, candidate) == 0 {
				return true
			}
		}
		return false
	}

	if v == nil {
		return false
	}

	switch c.Op {
	case OpEq:
		return CompareValues(v, c.Value) == 0
	case OpNeq:
		return CompareValues(v, c.Value) != 0
	case OpGt:
		return CompareValues(v, c.Value) > 0
	case OpGte:
		return CompareValues(v, c.Value) >= 0
	case OpLt:
		return CompareValues(v, c.Value) < 0
	case OpLte:
		return CompareValues(v, c.Value) <= 0
	case OpILike:
		s, ok := v.(string)
		return ok && likePattern(c.Value).MatchString(s)
	default:
		return false
	}
}

// CompareValues orders two scalar values. Nil sorts first. Values that both
// parse as RFC 3339 timestamps compare as times, values that both parse as
// numbers compare numerically, everything else compares as text.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	as, bs := scalarString(a), scalarString(b)

	if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return at.Compare(bt)
		}
	}
	if af, err := strconv.ParseFloat(as, 64); err == nil {
		if bf, err := strconv.ParseFloat(bs, 64); err == nil {
			return cmp.Compare(af, bf)
		}
	}
	return strings.Compare(as, bs)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// likePattern compiles a PostgREST ilike pattern. Both * and % match any run.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '*', '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
