package migrate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindBool
	kindFloat
	kindDecimal
	kindTime
)

// timeLayouts are tried in order. The first two accept PostgreSQL's text
// output, e.g. "2024-03-01 10:00:00.5+00".
var timeLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// kindOf maps a declared column type from any supported store to the value
// kind the loader binds.
func kindOf(columnType string) columnKind {
	t := strings.ToLower(strings.TrimSpace(columnType))
	base := t
	if i := strings.IndexAny(base, "( "); i >= 0 {
		base = base[:i]
	}

	switch base {
	case "tinyint":
		if strings.HasPrefix(t, "tinyint(1)") {
			return kindBool
		}
		return kindInt
	case "int", "integer", "smallint", "mediumint", "bigint",
		"int2", "int4", "int8", "serial", "bigserial", "smallserial":
		return kindInt
	case "bool", "boolean":
		return kindBool
	case "float", "double", "real", "float4", "float8":
		return kindFloat
	case "decimal", "numeric":
		return kindDecimal
	case "date", "datetime", "timestamp", "timestamptz":
		return kindTime
	default:
		return kindText
	}
}

// coerce converts interchange text to the Go value bound for a column of the
// given kind. Values that are not strings were produced in-process and pass
// through unchanged.
func coerce(v any, kind columnKind) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}

	switch kind {
	case kindInt:
		switch s {
		case "t", "true":
			return int64(1), nil
		case "f", "false":
			return int64(0), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, nil
		}
		return nil, fmt.Errorf("%q is not an integer", s)
	case kindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", s)
		}
		return b, nil
	case kindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}
		return f, nil
	case kindDecimal:
		// kept as text so no precision is lost
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("%q is not a decimal", s)
		}
		return s, nil
	case kindTime:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("%q is not a date or timestamp", s)
	default:
		return s, nil
	}
}
