package rangezip

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/rangezip/internal/testutil"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(
		testutil.File{Name: "dir/file.txt", Data: []byte("content"), Method: Deflated},
	))
	dest := t.TempDir()

	e, _ := a.Find("dir/file.txt")
	path, err := a.Extract(e, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "dir", "file.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	leftovers, err := filepath.Glob(filepath.Join(dest, "dir", ".rangezip-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExtractStaysInsideRoot(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(
		testutil.File{Name: "../../etc/passwd", Data: []byte("root:x:0:0")},
		testutil.File{Name: "/abs/path.txt", Data: []byte("abs")},
	))
	parent := t.TempDir()
	dest := filepath.Join(parent, "out")

	e, _ := a.Find("../../etc/passwd")
	path, err := a.Extract(e, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "etc", "passwd"), path)

	e, _ = a.Find("/abs/path.txt")
	path, err = a.Extract(e, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "abs", "path.txt"), path)

	_, err = os.Stat(filepath.Join(parent, "etc"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractInsecureName(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(testutil.File{Name: "../..", Data: []byte("x")}))
	e, _ := a.Find("../..")
	_, err := a.Extract(e, t.TempDir())
	require.ErrorIs(t, err, ErrInsecurePath)
}

func TestExtractWindowsNames(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(testutil.File{Name: `C:\docs\what?.txt.`, Data: []byte("x")}))
	dest := t.TempDir()

	e := a.Entries()[0]
	path, err := a.Extract(e, dest, ExtractWithWindowsNames(true))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "docs", "what_.txt"), path)
}

func TestExtractOverwrites(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(testutil.File{Name: "f.txt", Data: []byte("new")}))
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "f.txt"), []byte("old content"), 0o600))

	e, _ := a.Find("f.txt")
	path, err := a.Extract(e, dest)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestExtractCorruptLeavesNothing(t *testing.T) {
	t.Parallel()

	a, src, built := openBuilt(t, builder(testutil.File{Name: "f.txt", Data: []byte("some content here")}))
	src.Bytes()[built.DataOffsets[0]] ^= 0xff
	dest := t.TempDir()

	e, _ := a.Find("f.txt")
	_, err := a.Extract(e, dest)
	require.ErrorIs(t, err, ErrCRCMismatch)

	left, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestExtractMetadata(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(testutil.File{
		Name:               "script.sh",
		Data:               []byte("#!/bin/sh\n"),
		ExternalAttributes: (0o100000 | 0o700) << 16,
	}))
	dest := t.TempDir()

	e, _ := a.Find("script.sh")
	path, err := a.Extract(e, dest, ExtractWithPreserveMode(true), ExtractWithPreserveTimes(true))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(time.Date(2024, 3, 15, 10, 30, 20, 0, time.UTC)))
}

func TestExtractPassword(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(testutil.File{Name: "s.txt", Data: []byte("secret"), Password: "pw"}))
	dest := t.TempDir()
	e, _ := a.Find("s.txt")

	_, err := a.Extract(e, dest)
	require.ErrorIs(t, err, ErrPasswordRequired)

	path, err := a.Extract(e, dest, ExtractWithPassword("pw"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(data))
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	files := []testutil.File{
		{Name: "a.txt", Data: []byte("alpha")},
		{Name: "dir/", Data: nil},
		{Name: "dir/b.txt", Data: []byte("bravo"), Method: Deflated},
		{Name: "dir/sub/c.txt", Data: []byte("charlie"), Method: Zstd},
		{Name: "a.txt", Data: []byte("alpha v2")},
	}
	for _, workers := range []int{1, 4} {
		a, _, _ := openBuilt(t, builder(files...))
		dest := t.TempDir()

		var mu sync.Mutex
		var extracted int
		paths, err := a.ExtractAll(dest,
			ExtractWithWorkers(workers),
			ExtractWithProgress(func(ev ProgressEvent) {
				if ev.Stage != StageExtracted {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				extracted++
				assert.Equal(t, 4, ev.EntriesTotal)
			}),
		)
		require.NoError(t, err)
		assert.Len(t, paths, 4)
		assert.Equal(t, 4, extracted)

		data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "alpha v2", string(data), "last duplicate wins")

		info, err := os.Stat(filepath.Join(dest, "dir"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		data, err = os.ReadFile(filepath.Join(dest, "dir", "sub", "c.txt"))
		require.NoError(t, err)
		assert.Equal(t, "charlie", string(data))
	}
}

func TestExtractAllCanceled(t *testing.T) {
	t.Parallel()

	a, _, _ := openBuilt(t, builder(testutil.File{Name: "a.txt", Data: []byte("alpha")}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.ExtractAll(t.TempDir(), ExtractWithContext(ctx))
	require.ErrorIs(t, err, context.Canceled)
}
