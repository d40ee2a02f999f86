package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrExecution marks persistence-layer failures during a read.
var ErrExecution = errors.New("query execution failed")

// Collection describes one searchable table to the builder.
type Collection struct {
	Table   string
	Columns []string
	// SearchVector is the tsvector expression text queries match against.
	SearchVector string
	// NaturalOrder sorts listings without a text query.
	NaturalOrder string
	// Tiebreak breaks equal relevance scores deterministically so pages
	// stay stable across requests.
	Tiebreak string
	// DateColumn backs DateRange filters; GeoLat/GeoLng back GeoRadius.
	DateColumn string
	GeoLat     string
	GeoLng     string
	// BaseWhere is an always-on predicate such as "is_active = TRUE".
	BaseWhere string
}

// Statement is a ready-to-run data+count pair sharing one filter arg list.
// DataArgs is Args plus limit and offset.
type Statement struct {
	DataSQL   string
	CountSQL  string
	DataArgs  []any
	CountArgs []any
}

// Build compiles filters into a data statement ordered for stable pagination
// and a count statement over the same predicate. With a text filter present
// the ordering is relevance score descending plus the collection tiebreak;
// otherwise the collection's natural order applies.
func Build(c Collection, filters []Filter, p Page) (Statement, error) {
	var (
		where []string
		args  []any
		rank  string
	)
	if c.BaseWhere != "" {
		where = append(where, c.BaseWhere)
	}

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	for _, f := range filters {
		switch f := f.(type) {
		case Text:
			ph := arg(f.Query)
			tsq := "websearch_to_tsquery('english', " + ph + ")"
			where = append(where, c.SearchVector+" @@ "+tsq)
			rank = "ts_rank(" + c.SearchVector + ", " + tsq + ")"
		case Category:
			where = append(where, "category ILIKE "+arg(f.Value))
		case DateRange:
			if c.DateColumn == "" {
				return Statement{}, fmt.Errorf("collection %s has no date column", c.Table)
			}
			if !f.From.IsZero() {
				where = append(where, c.DateColumn+" >= "+arg(f.From))
			}
			if !f.To.IsZero() {
				where = append(where, c.DateColumn+" < "+arg(f.To))
			}
		case GeoRadius:
			if c.GeoLat == "" || c.GeoLng == "" {
				return Statement{}, fmt.Errorf("collection %s has no coordinates", c.Table)
			}
			// Haversine distance in km against the point's columns.
			latPh, lngPh := arg(f.Lat), arg(f.Lng)
			dist := fmt.Sprintf(
				"(6371 * acos(least(1.0, cos(radians(%[1]s)) * cos(radians(%[3]s)) * cos(radians(%[4]s) - radians(%[2]s)) + sin(radians(%[1]s)) * sin(radians(%[3]s)))))",
				latPh, lngPh, c.GeoLat, c.GeoLng,
			)
			where = append(where, dist+" <= "+arg(f.RadiusKm))
		default:
			return Statement{}, fmt.Errorf("unsupported filter %T", f)
		}
	}

	predicate := ""
	if len(where) > 0 {
		predicate = " WHERE " + strings.Join(where, " AND ")
	}

	order := c.NaturalOrder
	if rank != "" {
		order = rank + " DESC"
		if c.Tiebreak != "" {
			order += ", " + c.Tiebreak
		}
	}

	countArgs := make([]any, len(args))
	copy(countArgs, args)

	dataSQL := "SELECT " + strings.Join(c.Columns, ", ") + " FROM " + c.Table +
		predicate + " ORDER BY " + order +
		" LIMIT " + arg(p.Limit) + " OFFSET " + arg(p.Offset())
	countSQL := "SELECT COUNT(*) FROM " + c.Table + predicate

	return Statement{
		DataSQL:   dataSQL,
		CountSQL:  countSQL,
		DataArgs:  args,
		CountArgs: countArgs,
	}, nil
}
