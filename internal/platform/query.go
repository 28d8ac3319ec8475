// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Op is a row filter operator.
type Op string

// Supported operators.
const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpIn    Op = "in"
	OpILike Op = "ilike"
	OpIs    Op = "is"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true,
	OpLte: true, OpIn: true, OpILike: true, OpIs: true,
}

// reserved query parameters that are not column filters.
var reservedParams = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

// Condition is one column filter. Values is used by OpIn only.
type Condition struct {
	Column string
	Op     Op
	Value  string
	Values []string
}

// Order sorts by one column.
type Order struct {
	Column string
	Desc   bool
}

// Query is an immutable row filter with ordering and limit. Builder methods
// return copies, so a base query can be shared.
type Query struct {
	Conditions []Condition
	Orders     []Order
	RowLimit   int
}

// Where starts a query with an equality condition.
func Where(column, value string) Query {
	return Query{}.Eq(column, value)
}

// All is the empty query matching every row.
func All() Query { return Query{} }

func (q Query) with(c Condition) Query {
	q.Conditions = append(slices.Clip(q.Conditions), c)
	return q
}

func (q Query) Eq(column, value string) Query  { return q.with(Condition{column, OpEq, value, nil}) }
func (q Query) Neq(column, value string) Query { return q.with(Condition{column, OpNeq, value, nil}) }
func (q Query) Gt(column, value string) Query  { return q.with(Condition{column, OpGt, value, nil}) }
func (q Query) Gte(column, value string) Query { return q.with(Condition{column, OpGte, value, nil}) }
func (q Query) Lt(column, value string) Query  { return q.with(Condition{column, OpLt, value, nil}) }
func (q Query) Lte(column, value string) Query { return q.with(Condition{column, OpLte, value, nil}) }

// In matches any of values. An empty list matches nothing.
func (q Query) In(column string, values ...string) Query {
	return q.with(Condition{Column: column, Op: OpIn, Values: slices.Clone(values)})
}

// ILike is a case-insensitive pattern match; * and % are wildcards.
func (q Query) ILike(column, pattern string) Query {
	return q.with(Condition{column, OpILike, pattern, nil})
}

// Is matches null, true or false.
func (q Query) Is(column, value string) Query { return q.with(Condition{column, OpIs, value, nil}) }

// OrderBy appends a sort key.
func (q Query) OrderBy(column string, desc bool) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Column: column, Desc: desc})
	return q
}

// Limit caps the number of rows returned. Zero means no limit.
func (q Query) Limit(n int) Query {
	q.RowLimit = n
	return q
}

// Values encodes the query as PostgREST parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	for _, c := range q.Conditions {
		v.Add(c.Column, c.encode())
	}
	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.RowLimit > 0 {
		v.Set("limit", strconv.Itoa(q.RowLimit))
	}
	return v
}

// String returns the encoded query string.
func (q Query) String() string {
	return q.Values().Encode()
}

func (c Condition) encode() string {
	if c.Op == OpIn {
		quoted := make([]string, len(c.Values))
		for i, val := range c.Values {
			quoted[i] = quoteListValue(val)
		}
		return "in.(" + strings.Join(quoted, ",") + ")"
	}
	return string(c.Op) + "." + c.Value
}

func quoteListValue(s string) string {
	if strings.ContainsAny(s, ",()\"\\ ") {
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
	}
	return s
}

// ParseQuery decodes PostgREST parameters into a Query. Unknown operators
// are rejected.
func ParseQuery(v url.Values) (Query, error) {
	var q Query

	columns := make([]string, 0, len(v))
	for key := range v {
		if !reservedParams[key] {
			columns = append(columns, key)
		}
	}
	slices.Sort(columns)

	for _, column := range columns {
		for _, raw := range v[column] {
			c, err := parseCondition(column, raw)
			if err != nil {
				return Query{}, err
			}
			q.Conditions = append(q.Conditions, c)
		}
	}

	if order := v.Get("order"); order != "" {
		for _, part := range strings.Split(order, ",") {
			col, dir, _ := strings.Cut(strings.TrimSpace(part), ".")
			if col == "" {
				return Query{}, fmt.Errorf("invalid order %q", order)
			}
			switch dir {
			case "", "asc":
				q.Orders = append(q.Orders, Order{Column: col})
			case "desc":
				q.Orders = append(q.Orders, Order{Column: col, Desc: true})
			default:
				return Query{}, fmt.Errorf("invalid order direction %q", dir)
			}
		}
	}

	if limit := v.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("invalid limit %q", limit)
		}
		q.RowLimit = n
	}

	return q, nil
}

func parseCondition(column, raw string) (Condition, error) {
	op, value, ok := strings.Cut(raw, ".")
	if !ok || !knownOps[Op(op)] {
		return Condition{}, fmt.Errorf("invalid filter %s=%s", column, raw)
	}
	c := Condition{Column: column, Op: Op(op), Value: value}
	if c.Op == OpIn {
		if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
			return Condition{}, fmt.Errorf("invalid in list %s=%s", column, raw)
		}
		c.Values = splitList(value[1 : len(value)-1])
		c.Value = ""
	}
	return c, nil
}

// splitList splits a comma separated list honoring double quotes.
func splitList(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	var cur strings.Builder
	inQuotes, escaped := false, false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuotes:
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}
