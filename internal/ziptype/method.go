package ziptype

import "strconv"

// Method identifies the compression method recorded for an entry.
type Method uint16

// Compression methods that can be streamed.
const (
	Stored   Method = 0
	Deflated Method = 8
	Zstd     Method = 93
)

// AES is the method code written for WinZip AES encrypted entries.
const AES Method = 99

var methodNames = map[Method]string{
	0:  "store",
	1:  "shrink",
	2:  "reduce",
	3:  "reduce",
	4:  "reduce",
	5:  "reduce",
	6:  "implode",
	7:  "tokenize",
	8:  "deflate",
	9:  "deflate64",
	10: "implode",
	12: "bzip2",
	14: "lzma",
	18: "terse",
	19: "lz77",
	93: "zstd",
	97: "wavpack",
	98: "ppmd",
	99: "aes",
}

// String returns the conventional name of the method, or its numeric code
// when the method is not a registered one.
func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "method " + strconv.Itoa(int(m))
}

// Supported reports whether entries using m can be streamed.
func (m Method) Supported() bool {
	switch m {
	case Stored, Deflated, Zstd:
		return true
	default:
		return false
	}
}
