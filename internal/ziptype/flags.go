package ziptype

// Flags is the general purpose bit flag of an entry.
type Flags uint16

// General purpose flag bits.
const (
	FlagEncrypted        Flags = 1 << 0
	FlagDataDescriptor   Flags = 1 << 3
	FlagPatched          Flags = 1 << 5
	FlagStrongEncryption Flags = 1 << 6
	FlagUTF8             Flags = 1 << 11
	FlagMaskedHeaders    Flags = 1 << 13
)

// Has reports whether all bits in f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// NameEncoding records how an entry name was decoded from its raw bytes.
type NameEncoding uint8

const (
	// EncodingCP437 is the legacy IBM PC code page used when the UTF-8 flag is clear.
	EncodingCP437 NameEncoding = iota

	// EncodingUTF8 is used when the UTF-8 flag (bit 11) is set.
	EncodingUTF8
)

func (e NameEncoding) String() string {
	if e == EncodingUTF8 {
		return "utf-8"
	}
	return "cp437"
}
