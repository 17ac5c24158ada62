package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pgreplay/internal/config"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

func TestParseTimeframe_SplitsColLowerUpper(t *testing.T) {
	col, lo, hi, err := parseTimeframe("created_at:2024-01-01:2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, "created_at", col)
	assert.Equal(t, "2024-01-01", lo)
	assert.Equal(t, "2024-02-01", hi)
}

func TestParseTimeframe_RejectsWrongShape(t *testing.T) {
	_, _, _, err := parseTimeframe("created_at:2024-01-01")
	assert.Error(t, err)
}

func TestParseTruncate_SplitsTableColLowerUpper(t *testing.T) {
	f, err := parseTruncate("orders:created_at:2024-01-01:2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, config.TruncateFilter{Table: "orders", Column: "created_at", Lower: "2024-01-01", Upper: "2024-02-01"}, f)
}

func TestParseTruncate_RejectsMissingField(t *testing.T) {
	_, err := parseTruncate("orders::2024-01-01:2024-02-01")
	assert.Error(t, err)
}

func TestModeFromString(t *testing.T) {
	assert.Equal(t, record.Wide, modeFromString("wide"))
	assert.Equal(t, record.Strict, modeFromString("strict"))
	assert.Equal(t, record.Strict, modeFromString(""))
}

func TestFilterSetFromTruncates_ScopesByTable(t *testing.T) {
	fs := filterSetFromTruncates([]config.TruncateFilter{
		{Table: "orders", Column: "created_at", Lower: "a", Upper: "b"},
	}, "public")

	filters := fs.For(record.TableRef{Schema: "public", Name: "orders"})
	require.Len(t, filters, 1)
	assert.Equal(t, "created_at", filters[0].Column)
}

func TestResolveSeeds_ByPKs_SingleColumnPrimaryKey(t *testing.T) {
	meta := &pgcatalog.Table{
		Ref:               record.TableRef{Schema: "public", Name: "orders"},
		PrimaryKeyColumns: []string{"id"},
	}
	seed := config.SeedConfig{Table: "orders", PKs: []string{"1", "2"}}

	ids, err := resolveSeeds(context.Background(), nil, meta, seed)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, record.NewIdentifier(meta.Ref, []any{"1"}), ids[0])
}

func TestResolveSeeds_ByPKs_CompositePrimaryKeyIsUsageError(t *testing.T) {
	meta := &pgcatalog.Table{
		Ref:               record.TableRef{Schema: "public", Name: "order_items"},
		PrimaryKeyColumns: []string{"order_id", "line_no"},
	}
	seed := config.SeedConfig{Table: "order_items", PKs: []string{"1"}}

	_, err := resolveSeeds(context.Background(), nil, meta, seed)
	require.Error(t, err)
	var usageErr *UsageError
	assert.ErrorAs(t, err, &usageErr)
}

func TestResolveSeeds_ByTimeframe_QueriesAndScansPKs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	meta := &pgcatalog.Table{
		Ref:               record.TableRef{Schema: "public", Name: "orders"},
		PrimaryKeyColumns: []string{"id"},
	}
	seed := config.SeedConfig{Table: "orders", TimeframeColumn: "created_at", TimeframeLower: "2024-01-01", TimeframeUpper: "2024-02-01"}

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2)
	mock.ExpectQuery(`SELECT "id" FROM "public"\."orders" WHERE "created_at" BETWEEN \$1 AND \$2`).
		WithArgs("2024-01-01", "2024-02-01").
		WillReturnRows(rows)

	ids, err := resolveSeeds(context.Background(), db, meta, seed)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteOutput_Stdout_WhenPathEmpty(t *testing.T) {
	var captured bytes.Buffer
	orig := os.Stdout
	defer func() { os.Stdout = orig }()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	err = writeOutput("", func(out io.Writer) error {
		_, e := out.Write([]byte("hello"))
		return e
	})
	require.NoError(t, err)
	w.Close()
	captured.ReadFrom(r)
	assert.Equal(t, "hello", captured.String())
}

func TestWriteOutput_WritesAtomicallyToAFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.sql")

	err := writeOutput(path, func(out io.Writer) error {
		_, e := out.Write([]byte("BEGIN;\nCOMMIT;\n"))
		return e
	})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN;\nCOMMIT;\n", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file should remain")
}

func TestWriteOutput_RemovesTempFileOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.sql")

	err := writeOutput(path, func(out io.Writer) error {
		return assertErr("boom")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 0, "a failed write must leave no temp file and no output file")
}
