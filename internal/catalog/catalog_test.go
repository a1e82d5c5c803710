package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/rangezip"
	"github.com/meigma/rangezip/internal/testutil"
)

func TestExport(t *testing.T) {
	t.Parallel()

	b := &testutil.Builder{Comment: []byte("nightly")}
	b.Add(testutil.File{Name: "dir/", ExternalAttributes: (0o040000 | 0o755) << 16})
	b.Add(testutil.File{Name: "dir/a.txt", Data: []byte("alpha"), Method: rangezip.Deflated})
	b.Add(testutil.File{Name: "big.bin", Data: []byte("x"), Zip64: true, DeclaredSize: 5_000_000_000})
	a, err := rangezip.Open(testutil.NewMockByteSource(b.Build(t).Data))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, Export(context.Background(), a, "fixture.zip", path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var source, comment string
	var entries int
	require.NoError(t, db.QueryRow(`SELECT source, entries, comment FROM archive`).Scan(&source, &entries, &comment))
	assert.Equal(t, "fixture.zip", source)
	assert.Equal(t, 3, entries)
	assert.Equal(t, "nightly", comment)

	rows, err := db.Query(`SELECT name, is_dir, method_name, uncompressed_size, modified FROM entries ORDER BY seq`)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		name     string
		isDir    bool
		method   string
		size     int64
		modified string
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.name, &r.isDir, &r.method, &r.size, &r.modified))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []row{
		{"dir/", true, "store", 0, "2024-03-15 10:30:20"},
		{"dir/a.txt", false, "deflate", 5, "2024-03-15 10:30:20"},
		{"big.bin", false, "store", 5_000_000_000, "2024-03-15 10:30:20"},
	}, got)
}

func TestExportRefusesExisting(t *testing.T) {
	t.Parallel()

	b := &testutil.Builder{}
	b.Add(testutil.File{Name: "a", Data: []byte("a")})
	a, err := rangezip.Open(testutil.NewMockByteSource(b.Build(t).Data))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, Export(context.Background(), a, "a.zip", path))
	require.Error(t, Export(context.Background(), a, "a.zip", path))
}
