// Package catalog exports the central directory of an archive into a
// SQLite database for offline querying.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/meigma/rangezip"
)

var schema = []string{
	`CREATE TABLE archive (
		source        TEXT NOT NULL,
		size          INTEGER NOT NULL,
		entries       INTEGER NOT NULL,
		zip64         INTEGER NOT NULL,
		concat_offset INTEGER NOT NULL,
		comment       TEXT NOT NULL
	)`,
	`CREATE TABLE entries (
		seq               INTEGER PRIMARY KEY,
		name              TEXT NOT NULL,
		raw_name          BLOB NOT NULL,
		encoding          TEXT NOT NULL,
		is_dir            INTEGER NOT NULL,
		method            INTEGER NOT NULL,
		method_name       TEXT NOT NULL,
		flags             INTEGER NOT NULL,
		encrypted         INTEGER NOT NULL,
		crc32             INTEGER NOT NULL,
		compressed_size   INTEGER NOT NULL,
		uncompressed_size INTEGER NOT NULL,
		header_offset     INTEGER NOT NULL,
		modified          TEXT NOT NULL,
		mode              TEXT NOT NULL,
		comment           TEXT NOT NULL
	)`,
	`CREATE INDEX entries_name ON entries (name)`,
}

// Export writes the directory of a into a new SQLite database at path.
// source names the archive location and is stored as given. The database
// must not already exist.
func Export(ctx context.Context, a *rangezip.Archive, source, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("output file already exists: %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = OFF"); err != nil {
		return fmt.Errorf("set synchronous: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	end := a.EndRecord()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO archive VALUES (?, ?, ?, ?, ?, ?)`,
		source, a.Size(), a.Len(), end.Zip64, a.ConcatOffset(), string(end.Comment),
	); err != nil {
		return fmt.Errorf("insert archive: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range a.Entries() {
		if _, err := stmt.ExecContext(ctx,
			i,
			e.Name,
			e.RawName,
			e.NameEncoding.String(),
			e.IsDir(),
			int64(e.Method),
			e.Method.String(),
			int64(e.Flags),
			e.Encrypted(),
			int64(e.CRC32),
			sizeValue(e.CompressedSize),
			sizeValue(e.UncompressedSize),
			sizeValue(e.HeaderOffset),
			e.ModTime().Format(time.DateTime),
			e.Mode().String(),
			string(e.Comment),
		); err != nil {
			return fmt.Errorf("insert %s: %w", e.Name, err)
		}
	}

	return tx.Commit()
}

// sizeValue stores sizes beyond the SQLite integer range as text.
func sizeValue(v uint64) any {
	if v > 1<<63-1 {
		return fmt.Sprint(v)
	}
	return int64(v)
}
