package replay

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatLiteral renders a Go value as a SQL literal according to its
// declared catalog type name, never by inspecting the value's runtime
// class: literals are formatted by declared type, not by runtime class.
// dataType is the information_schema.columns.data_type
// string (e.g. "integer", "character varying", "timestamp without time
// zone", "boolean", "jsonb", "ARRAY", "bytea", "USER-DEFINED").
func FormatLiteral(value any, dataType, udtName string) string {
	if value == nil {
		return "NULL"
	}

	switch {
	case strings.EqualFold(dataType, "boolean"):
		return formatBool(value)
	case strings.EqualFold(dataType, "bytea"):
		return formatBytea(value)
	case dataType == "ARRAY":
		return formatArray(value, udtName)
	case strings.EqualFold(dataType, "json") || strings.EqualFold(dataType, "jsonb"):
		return formatQuotedCast(value, dataType)
	case strings.EqualFold(dataType, "USER-DEFINED"):
		return formatQuotedCast(value, udtName)
	case isNumericType(dataType):
		return formatNumeric(value)
	default:
		// Strings, dates, timestamps, UUIDs, and anything else the
		// catalog reports: rendered as a single-quoted text literal.
		return formatString(value)
	}
}

func isNumericType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint", "decimal", "numeric",
		"real", "double precision", "smallserial", "serial", "bigserial":
		return true
	}
	return false
}

func formatBool(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		if v == "t" || v == "true" || v == "1" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatBytea(value any) string {
	switch v := value.(type) {
	case []byte:
		return "'\\x" + hex.EncodeToString(v) + "'"
	case string:
		return "'\\x" + hex.EncodeToString([]byte(v)) + "'"
	default:
		return formatString(value)
	}
}

func formatNumeric(value any) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v
		}
		return formatString(value)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatArray renders a Postgres array value as a typed array literal.
// The traversal engine scans arrays back from lib/pq as their native
// text representation (e.g. "{1,2,3}"), so this renders that text as a
// quoted literal cast to the array type ('{1,2,3}'::int4[]) rather than
// attempting to re-parse element values.
func formatArray(value any, udtName string) string {
	elemType := strings.TrimPrefix(udtName, "_")
	text := formatString(value)
	return fmt.Sprintf("%s::%s[]", text, elemType)
}

func formatQuotedCast(value any, castType string) string {
	text := formatString(value)
	if castType == "" {
		return text
	}
	return fmt.Sprintf("%s::%s", text, castType)
}

func formatString(value any) string {
	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case time.Time:
		// lib/pq scans date/timestamp columns as time.Time; fmt's default
		// Stringer format for it is not ISO-8601 and appends a zone
		// abbreviation Postgres does not accept, so it needs an explicit
		// RFC3339Nano rendering rather than falling through to %v.
		s = v.Format(time.RFC3339Nano)
	default:
		s = fmt.Sprintf("%v", v)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
