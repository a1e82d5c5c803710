package format

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/rangezip/internal/testutil"
	"github.com/meigma/rangezip/internal/ziptype"
)

var discard = slog.New(slog.DiscardHandler)

func twoFiles() *testutil.Builder {
	b := &testutil.Builder{}
	b.Add(testutil.File{Name: "a.txt", Data: []byte("hello, world")})
	b.Add(testutil.File{Name: "dir/b.txt", Data: bytes.Repeat([]byte("b"), 300), Method: ziptype.Deflated})
	return b
}

func open(t *testing.T, data []byte) (*testutil.MockByteSource, *Directory) {
	t.Helper()
	src := testutil.NewMockByteSource(data)
	end, tail, err := LocateEnd(src, src.Size(), discard)
	require.NoError(t, err)
	dir, err := ReadDirectory(src, end, tail, discard)
	require.NoError(t, err)
	return src, dir
}

func TestFetch(t *testing.T) {
	t.Parallel()

	src := testutil.NewMockByteSource([]byte("0123456789"))

	got, err := Fetch(src, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), got)

	got, err = Fetch(src, 8, 10)
	require.NoError(t, err, "short read at end of source is not an error")
	assert.Equal(t, []byte("89"), got)

	boom := errors.New("boom")
	src.FailWith(func(int64, int) error { return boom })
	_, err = Fetch(src, 0, 1)
	require.ErrorIs(t, err, boom)
	var serr *ziptype.SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, int64(0), serr.Offset)
	assert.Equal(t, int64(1), serr.Length)
}

func TestLocateEndSingleFetch(t *testing.T) {
	t.Parallel()

	built := twoFiles().Build(t)
	src := testutil.NewMockByteSource(built.Data)

	end, tail, err := LocateEnd(src, src.Size(), discard)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Reads())
	assert.Equal(t, built.EndOffset, end.Location)
	assert.Equal(t, uint64(2), end.EntriesTotal)
	assert.Equal(t, uint64(built.DirectoryOffset), end.DirectoryOffset)
	assert.False(t, end.Zip64)
	assert.Empty(t, end.Comment)
	assert.Equal(t, int64(0), tail.Offset)

	_, err = ReadDirectory(src, end, tail, discard)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Reads(), "directory should come from the tail window")
}

func TestLocateEndComment(t *testing.T) {
	t.Parallel()

	b := twoFiles()
	b.Comment = []byte("archive comment")
	built := b.Build(t)
	src := testutil.NewMockByteSource(built.Data)

	end, _, err := LocateEnd(src, src.Size(), discard)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive comment"), end.Comment)
	assert.Equal(t, built.EndOffset, end.Location)
}

func TestLocateEndNotAZip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"tiny", []byte("PK")},
		{"no signature", bytes.Repeat([]byte{0xAB}, 4096)},
		{"truncated record", append(bytes.Repeat([]byte{0}, 100), 'P', 'K', 5, 6, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := testutil.NewMockByteSource(tt.data)
			_, _, err := LocateEnd(src, src.Size(), discard)
			require.ErrorIs(t, err, ziptype.ErrNotAZip)
		})
	}
}

func TestLocateEndZip64(t *testing.T) {
	t.Parallel()

	b := twoFiles()
	b.Zip64End = true
	built := b.Build(t)
	src := testutil.NewMockByteSource(built.Data)

	end, tail, err := LocateEnd(src, src.Size(), discard)
	require.NoError(t, err)
	assert.True(t, end.Zip64)
	assert.Equal(t, uint64(2), end.EntriesTotal)
	assert.Equal(t, uint64(built.DirectoryOffset), end.DirectoryOffset)

	dir, err := ReadDirectory(src, end, tail, discard)
	require.NoError(t, err)
	assert.Len(t, dir.Entries, 2)
	assert.Equal(t, int64(0), dir.ConcatOffset)
}

func TestLocateEndMultiDisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		disk  uint32
		disks uint32
	}{
		{"record on second disk", 1, 2},
		{"two disks", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := twoFiles()
			b.Zip64End = true
			b.LocatorDisk = tt.disk
			b.LocatorDisks = tt.disks
			src := testutil.NewMockByteSource(b.Build(t).Data)

			_, _, err := LocateEnd(src, src.Size(), discard)
			require.ErrorIs(t, err, ziptype.ErrMultiDisk)
		})
	}
}

func TestReadDirectoryEntries(t *testing.T) {
	t.Parallel()

	built := twoFiles().Build(t)
	_, dir := open(t, built.Data)
	require.Len(t, dir.Entries, 2)

	a := dir.Entries[0]
	assert.Equal(t, "a.txt", a.Name)
	assert.Equal(t, ziptype.Stored, a.Method)
	assert.Equal(t, uint64(12), a.UncompressedSize)
	assert.Equal(t, uint64(12), a.CompressedSize)
	assert.Equal(t, built.CRCs[0], a.CRC32)
	assert.Equal(t, uint64(built.HeaderOffsets[0]), a.HeaderOffset)
	assert.Equal(t, 2024, a.Modified.Year)
	assert.Equal(t, 3, a.Modified.Month)
	assert.Equal(t, 15, a.Modified.Day)
	assert.Equal(t, 10, a.Modified.Hour)
	assert.Equal(t, 30, a.Modified.Minute)
	assert.Equal(t, 20, a.Modified.Second)

	b := dir.Entries[1]
	assert.Equal(t, "dir/b.txt", b.Name)
	assert.Equal(t, ziptype.Deflated, b.Method)
	assert.Equal(t, uint64(300), b.UncompressedSize)
	assert.Equal(t, uint64(built.CompressedSizes[1]), b.CompressedSize)
}

func TestReadDirectoryConcatenated(t *testing.T) {
	t.Parallel()

	prefix := bytes.Repeat([]byte("#!stub\n"), 20)
	for _, zip64 := range []bool{false, true} {
		b := twoFiles()
		b.Prefix = prefix
		b.Zip64End = zip64
		built := b.Build(t)

		_, dir := open(t, built.Data)
		assert.Equal(t, int64(len(prefix)), dir.ConcatOffset)
		for i, e := range dir.Entries {
			assert.Equal(t, uint64(built.HeaderOffsets[i]), e.HeaderOffset)
			sig := built.Data[e.HeaderOffset : e.HeaderOffset+4]
			assert.Equal(t, []byte("PK\x03\x04"), sig)
		}
	}
}

func TestReadDirectoryZip64Extra(t *testing.T) {
	t.Parallel()

	b := &testutil.Builder{}
	b.Add(testutil.File{Name: "huge.bin", Data: []byte("x"), Zip64: true, DeclaredSize: 5_000_000_000})
	built := b.Build(t)

	_, dir := open(t, built.Data)
	require.Len(t, dir.Entries, 1)
	e := dir.Entries[0]
	assert.Equal(t, uint64(5_000_000_000), e.UncompressedSize)
	assert.Equal(t, uint64(1), e.CompressedSize)
	assert.Equal(t, uint64(0), e.HeaderOffset)
	require.NotNil(t, e.Zip64)
	assert.Equal(t, []uint64{5_000_000_000, 1, 0}, e.Zip64.Values)
}

func TestReadDirectoryCorrupt(t *testing.T) {
	t.Parallel()

	zip64Extra := func(n int) []byte {
		b := make([]byte, 4+n)
		b[0] = 0x01
		b[2] = byte(n)
		return b
	}

	t.Run("bad record signature", func(t *testing.T) {
		t.Parallel()
		built := twoFiles().Build(t)
		built.Data[built.DirectoryOffset] = 'X'
		src := testutil.NewMockByteSource(built.Data)
		end, tail, err := LocateEnd(src, src.Size(), discard)
		require.NoError(t, err)
		_, err = ReadDirectory(src, end, tail, discard)
		require.ErrorIs(t, err, ziptype.ErrCorruptDirectory)
		var ferr *ziptype.FormatError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, built.DirectoryOffset, ferr.Offset)
	})

	t.Run("zip64 extra of odd length", func(t *testing.T) {
		t.Parallel()
		b := &testutil.Builder{}
		b.Add(testutil.File{Name: "a", Data: []byte("a"), CentralExtra: zip64Extra(12)})
		src := testutil.NewMockByteSource(b.Build(t).Data)
		end, tail, err := LocateEnd(src, src.Size(), discard)
		require.NoError(t, err)
		_, err = ReadDirectory(src, end, tail, discard)
		require.ErrorIs(t, err, ziptype.ErrCorruptDirectory)
	})

	t.Run("directory outside archive", func(t *testing.T) {
		t.Parallel()
		built := twoFiles().Build(t)
		src := testutil.NewMockByteSource(built.Data)
		end, tail, err := LocateEnd(src, src.Size(), discard)
		require.NoError(t, err)
		end.DirectorySize += 1 << 20
		_, err = ReadDirectory(src, end, tail, discard)
		require.ErrorIs(t, err, ziptype.ErrCorruptDirectory)
	})

	t.Run("record overruns directory", func(t *testing.T) {
		t.Parallel()
		built := twoFiles().Build(t)
		// Inflate the first record's comment length.
		built.Data[built.DirectoryOffset+32] = 0xFF
		src := testutil.NewMockByteSource(built.Data)
		end, tail, err := LocateEnd(src, src.Size(), discard)
		require.NoError(t, err)
		_, err = ReadDirectory(src, end, tail, discard)
		require.ErrorIs(t, err, ziptype.ErrCorruptDirectory)
	})
}

func TestReadDirectoryEmptyZip64Extra(t *testing.T) {
	t.Parallel()

	b := &testutil.Builder{}
	b.Add(testutil.File{Name: "a", Data: []byte("a"), CentralExtra: []byte{0x01, 0x00, 0x00, 0x00}})
	_, dir := open(t, b.Build(t).Data)
	require.NotNil(t, dir.Entries[0].Zip64)
	assert.Empty(t, dir.Entries[0].Zip64.Values)
}

func TestReadDirectoryCountMismatchWarns(t *testing.T) {
	t.Parallel()

	b := twoFiles()
	b.DeclaredEntries = 5
	src := testutil.NewMockByteSource(b.Build(t).Data)

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	end, tail, err := LocateEnd(src, src.Size(), log)
	require.NoError(t, err)
	dir, err := ReadDirectory(src, end, tail, log)
	require.NoError(t, err)
	assert.Len(t, dir.Entries, 2)
	assert.Contains(t, logs.String(), "entry count mismatch")
}

func TestReadDirectoryOutsideTail(t *testing.T) {
	t.Parallel()

	b := &testutil.Builder{}
	b.Add(testutil.File{Name: "big.bin", Data: bytes.Repeat([]byte{7}, 100_000)})
	// Push the directory start before the tail window.
	for i := range 10 {
		b.Add(testutil.File{Name: string(rune('a'+i)) + ".txt", Data: []byte("x")})
	}
	b.Comment = bytes.Repeat([]byte("c"), 65_500)
	src := testutil.NewMockByteSource(b.Build(t).Data)

	end, tail, err := LocateEnd(src, src.Size(), discard)
	require.NoError(t, err)
	require.Equal(t, 1, src.Reads())
	dir, err := ReadDirectory(src, end, tail, discard)
	require.NoError(t, err)
	assert.Len(t, dir.Entries, 11)
	assert.Equal(t, 2, src.Reads())
}

func TestDecodeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   []byte
		flags ziptype.Flags
		want  string
		enc   ziptype.NameEncoding
	}{
		{"ascii", []byte("plain.txt"), 0, "plain.txt", ziptype.EncodingCP437},
		{"cp437", []byte{0x80, 'a', 0x82}, 0, "Çaé", ziptype.EncodingCP437},
		{"utf8 flag", []byte("héllo"), ziptype.FlagUTF8, "héllo", ziptype.EncodingUTF8},
		{"nul truncated", []byte("a.txt\x00junk"), 0, "a.txt", ziptype.EncodingCP437},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, enc := DecodeName(tt.raw, tt.flags)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.enc, enc)
		})
	}
}

func TestReadLocalHeader(t *testing.T) {
	t.Parallel()

	built := twoFiles().Build(t)
	src, dir := open(t, built.Data)
	src.Reset()

	e := dir.Entries[0]
	h, err := ReadLocalHeader(src, src.Size(), e, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Reads())
	assert.Equal(t, built.DataOffsets[0], h.DataOffset)
	assert.Equal(t, []byte("hello, world"), h.Payload)

	h, err = ReadLocalHeader(src, src.Size(), dir.Entries[1], 10)
	require.NoError(t, err)
	assert.Len(t, h.Payload, 10, "prefetch is capped")
}

func TestReadLocalHeaderDataDescriptor(t *testing.T) {
	t.Parallel()

	b := &testutil.Builder{}
	b.Add(testutil.File{Name: "dd.txt", Data: []byte("deferred"), DataDescriptor: true, Method: ziptype.Deflated})
	src, dir := open(t, b.Build(t).Data)

	h, err := ReadLocalHeader(src, src.Size(), dir.Entries[0], 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h.CRC32)
	assert.Len(t, h.Payload, int(dir.Entries[0].CompressedSize))
}

func TestReadLocalHeaderInconsistent(t *testing.T) {
	t.Parallel()

	deflated := ziptype.Deflated
	badCRC := uint32(0xDEADBEEF)

	tests := []struct {
		name   string
		file   testutil.File
		mutate func(data []byte, e *ziptype.Entry)
	}{
		{
			name: "tampered name",
			file: testutil.File{Name: "good.txt", Data: []byte("x"), LocalName: []byte("evil.txt")},
		},
		{
			name: "method mismatch",
			file: testutil.File{Name: "m.txt", Data: []byte("x"), LocalMethod: &deflated},
		},
		{
			name: "crc mismatch",
			file: testutil.File{Name: "c.txt", Data: []byte("x"), LocalCRC: &badCRC},
		},
		{
			name: "extra too long",
			file: testutil.File{Name: "e.txt", Data: []byte("x"), LocalExtra: make([]byte, ExtraSlack+4)},
		},
		{
			name: "bad signature",
			file: testutil.File{Name: "s.txt", Data: []byte("x")},
			mutate: func(data []byte, e *ziptype.Entry) {
				data[e.HeaderOffset] = 'Q'
			},
		},
		{
			name: "payload past end",
			file: testutil.File{Name: "p.txt", Data: []byte("x")},
			mutate: func(_ []byte, e *ziptype.Entry) {
				e.CompressedSize = 1 << 30
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := &testutil.Builder{}
			b.Add(tt.file)
			src, dir := open(t, b.Build(t).Data)
			e := dir.Entries[0]
			if tt.mutate != nil {
				tt.mutate(src.Bytes(), e)
			}

			_, err := ReadLocalHeader(src, src.Size(), e, 0)
			require.ErrorIs(t, err, ziptype.ErrInconsistentEntry)
			var ferr *ziptype.FormatError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, e.Name, ferr.Name)
		})
	}
}

func TestReadLocalHeaderTruncatedSource(t *testing.T) {
	t.Parallel()

	built := twoFiles().Build(t)
	_, dir := open(t, built.Data)
	e := dir.Entries[1]

	short := testutil.NewMockByteSource(built.Data[:e.HeaderOffset+10])
	_, err := ReadLocalHeader(short, short.Size(), e, 0)
	require.ErrorIs(t, err, ziptype.ErrInconsistentEntry)

	_, err = ReadLocalHeader(short, int64(e.HeaderOffset), e, 0)
	require.ErrorIs(t, err, ziptype.ErrInconsistentEntry)
}

var _ io.ReaderAt = (*testutil.MockByteSource)(nil)
