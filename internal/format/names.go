package format

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/meigma/rangezip/internal/ziptype"
)

// DecodeName truncates raw at the first NUL and decodes it. Names with the
// UTF-8 flag are taken as is; all others are IBM code page 437.
func DecodeName(raw []byte, flags ziptype.Flags) (string, ziptype.NameEncoding) {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if flags.Has(ziptype.FlagUTF8) {
		return string(raw), ziptype.EncodingUTF8
	}
	if isASCII(raw) {
		return string(raw), ziptype.EncodingCP437
	}
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), ziptype.EncodingCP437
	}
	return string(decoded), ziptype.EncodingCP437
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
