// Package image encodes and decodes the SynQ binary bytecode image: the
// fixed-layout header plus code and data sections that form the contract
// between the code generator and the virtual machine.
package image

import (
	"encoding/binary"
	"fmt"
)

// Magic is the fixed 32-bit constant stamped into every image header. The
// source toolchain left this implementation-defined; this is the single
// constant every encoder and decoder here shares.
const Magic uint32 = 0x53594E51 // hex spells "SYNQ"; stored little-endian, the file begins "QNYS"

// Version is the only header version this toolchain emits or accepts.
const Version uint8 = 1

// HeaderLen is the fixed byte length of the header, including the fields
// naming the code and data section lengths that follow it.
const HeaderLen uint16 = 15

// HeaderError reports a malformed image header. A loader must reject the
// whole image without executing any instruction, per the header
// discipline invariant.
type HeaderError struct {
	Field string
	Want  string
	Got   string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("invalid image header: field %s: want %s, got %s", e.Field, e.Want, e.Got)
}

// Image is a decoded bytecode artifact: the instruction stream and its
// associated constant-data section.
type Image struct {
	Code []byte
	Data []byte
}

// Encode serializes img into the on-disk header+code+data byte layout.
func Encode(img Image) []byte {
	buf := make([]byte, 0, int(HeaderLen)+len(img.Code)+len(img.Data))
	var hdr [15]byte
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	hdr[4] = Version
	binary.LittleEndian.PutUint16(hdr[5:7], HeaderLen)
	binary.LittleEndian.PutUint32(hdr[7:11], uint32(len(img.Code)))
	binary.LittleEndian.PutUint32(hdr[11:15], uint32(len(img.Data)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, img.Code...)
	buf = append(buf, img.Data...)
	return buf
}

// Decode validates and parses a byte image. Every header field is checked
// before any section is sliced out, and before the caller is handed
// anything the VM could execute.
func Decode(b []byte) (Image, error) {
	if len(b) < int(HeaderLen) {
		return Image{}, &HeaderError{Field: "length", Want: fmt.Sprintf(">= %d bytes", HeaderLen), Got: fmt.Sprintf("%d bytes", len(b))}
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	if magic != Magic {
		return Image{}, &HeaderError{Field: "magic", Want: fmt.Sprintf("0x%08x", Magic), Got: fmt.Sprintf("0x%08x", magic)}
	}
	version := b[4]
	if version != Version {
		return Image{}, &HeaderError{Field: "version", Want: fmt.Sprintf("%d", Version), Got: fmt.Sprintf("%d", version)}
	}
	headerLen := binary.LittleEndian.Uint16(b[5:7])
	if headerLen != HeaderLen {
		return Image{}, &HeaderError{Field: "header length", Want: fmt.Sprintf("%d", HeaderLen), Got: fmt.Sprintf("%d", headerLen)}
	}
	codeLen := binary.LittleEndian.Uint32(b[7:11])
	dataLen := binary.LittleEndian.Uint32(b[11:15])
	want := int(headerLen) + int(codeLen) + int(dataLen)
	if want < 0 || len(b) != want {
		return Image{}, &HeaderError{Field: "section lengths", Want: fmt.Sprintf("total %d bytes", want), Got: fmt.Sprintf("%d bytes", len(b))}
	}
	code := make([]byte, codeLen)
	copy(code, b[headerLen:int(headerLen)+int(codeLen)])
	data := make([]byte, dataLen)
	copy(data, b[int(headerLen)+int(codeLen):])
	return Image{Code: code, Data: data}, nil
}
