// Package zipcrypto implements the traditional PKWARE stream cipher
// ("ZipCrypto") used by legacy encrypted ZIP entries.
//
// The cipher is weak and is supported for reading existing archives only.
package zipcrypto

import (
	"hash/crc32"

	"github.com/meigma/rangezip/internal/ziptype"
)

// HeaderLen is the size of the encryption header preceding the payload.
const HeaderLen = 12

var crcTable = crc32.MakeTable(crc32.IEEE)

// Keys is the three-word cipher state.
type Keys [3]uint32

// NewKeys returns the state after mixing in password.
func NewKeys(password []byte) Keys {
	k := Keys{0x12345678, 0x23456789, 0x34567890}
	for _, b := range password {
		k.Update(b)
	}
	return k
}

// Update advances the state with one plaintext byte.
func (k *Keys) Update(b byte) {
	k[0] = crc32Byte(k[0], b)
	k[1] = (k[1]+k[0]&0xFF)*134775813 + 1
	k[2] = crc32Byte(k[2], byte(k[1]>>24))
}

// StreamByte returns the next keystream byte without advancing the state.
func (k *Keys) StreamByte() byte {
	t := k[2] | 2
	return byte((t * (t ^ 1)) >> 8)
}

func crc32Byte(crc uint32, b byte) uint32 {
	return crcTable[byte(crc)^b] ^ (crc >> 8)
}

// Decryptor decrypts a ZipCrypto payload. It is not safe for concurrent use.
type Decryptor struct {
	keys Keys
}

// New returns a Decryptor keyed with password.
func New(password []byte) *Decryptor {
	return &Decryptor{keys: NewKeys(password)}
}

// DecryptByte decrypts a single byte.
func (d *Decryptor) DecryptByte(c byte) byte {
	p := c ^ d.keys.StreamByte()
	d.keys.Update(p)
	return p
}

// Decrypt decrypts buf in place.
func (d *Decryptor) Decrypt(buf []byte) {
	for i, c := range buf {
		buf[i] = d.DecryptByte(c)
	}
}

// CheckHeader decrypts the 12 byte encryption header and compares its last
// byte with check. The decryptor is positioned at the first payload byte
// afterwards, whatever the outcome.
func (d *Decryptor) CheckHeader(header [HeaderLen]byte, check byte) error {
	d.Decrypt(header[:])
	if header[HeaderLen-1] != check {
		return ziptype.ErrBadPassword
	}
	return nil
}

// CheckByte returns the value the last decrypted header byte must match:
// the high byte of the DOS time when sizes are deferred to a data
// descriptor, and the high byte of the CRC otherwise.
func CheckByte(e *ziptype.Entry) byte {
	if e.Flags.Has(ziptype.FlagDataDescriptor) {
		return byte(e.Modified.RawTime >> 8)
	}
	return byte(e.CRC32 >> 24)
}

// Encryptor is the inverse of Decryptor. Archives are never written by this
// module; it exists to build fixtures.
type Encryptor struct {
	keys Keys
}

// NewEncryptor returns an Encryptor keyed with password.
func NewEncryptor(password []byte) *Encryptor {
	return &Encryptor{keys: NewKeys(password)}
}

// Encrypt encrypts buf in place.
func (e *Encryptor) Encrypt(buf []byte) {
	for i, p := range buf {
		buf[i] = p ^ e.keys.StreamByte()
		e.keys.Update(p)
	}
}
