package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatLiteral_TimestampRendersAsRFC3339(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("EST", -5*60*60))

	got := FormatLiteral(ts, "timestamp with time zone", "")

	assert.Equal(t, "'2024-01-15T10:30:00-05:00'", got)
	assert.NotContains(t, got, "EST", "must not carry a non-standard zone abbreviation")
}

func TestFormatLiteral_DateRendersAsRFC3339(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	got := FormatLiteral(d, "date", "")

	assert.Equal(t, "'2024-01-15T00:00:00Z'", got)
}

func TestFormatLiteral_NullIsUnquoted(t *testing.T) {
	assert.Equal(t, "NULL", FormatLiteral(nil, "timestamp without time zone", ""))
}

func TestFormatLiteral_StringEscapesEmbeddedQuote(t *testing.T) {
	got := FormatLiteral("O'Brien", "character varying", "")
	assert.Equal(t, "'O''Brien'", got)
}

func TestFormatLiteral_BooleanFromNativeBool(t *testing.T) {
	assert.Equal(t, "TRUE", FormatLiteral(true, "boolean", ""))
	assert.Equal(t, "FALSE", FormatLiteral(false, "boolean", ""))
}

func TestFormatLiteral_NumericPassesThroughRawText(t *testing.T) {
	assert.Equal(t, "42", FormatLiteral([]byte("42"), "numeric", ""))
}

func TestFormatLiteral_ByteaHexEncodes(t *testing.T) {
	got := FormatLiteral([]byte{0xDE, 0xAD}, "bytea", "")
	assert.Equal(t, "'\\xdead'", got)
}

func TestFormatLiteral_UserDefinedAddsTypeCast(t *testing.T) {
	got := FormatLiteral("active", "USER-DEFINED", "status_enum")
	assert.Equal(t, "'active'::status_enum", got)
}
