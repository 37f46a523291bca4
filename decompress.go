package goimx

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// CompressionFormat is the closed set of codecs Decompress recognizes by
// magic bytes before handing a segment's payload to the image builder.
type CompressionFormat int

const (
	FormatNone CompressionFormat = iota
	FormatGzip
	FormatXZ
	FormatLZMA
	FormatBzip2
	FormatLZ4
)

func (f CompressionFormat) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatXZ:
		return "xz"
	case FormatLZMA:
		return "lzma"
	case FormatBzip2:
		return "bzip2"
	case FormatLZ4:
		return "lz4"
	default:
		return "none"
	}
}

var (
	gzipMagic1 = []byte{0x1f, 0x8b}
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z'}
	bzip2Magic = []byte("BZh")
	lz4Magic   = []byte{0x04, 0x22, 0x4d, 0x18}
)

// SniffCompression inspects the leading bytes of buf for a recognized
// compression magic (spec §4.2's "inputs may be pre-compressed").
func SniffCompression(buf []byte) CompressionFormat {
	has := func(magic []byte) bool {
		return len(buf) >= len(magic) && bytes.Equal(buf[:len(magic)], magic)
	}
	switch {
	case has(gzipMagic1):
		return FormatGzip
	case has(xzMagic):
		return FormatXZ
	case has(bzip2Magic):
		return FormatBzip2
	case has(lz4Magic):
		return FormatLZ4
	case len(buf) >= 13 && buf[0] == 0x5d && buf[1] == 0x00 && buf[2] == 0x00 && (buf[12] == 0xff || buf[12] == 0x00):
		return FormatLZMA
	default:
		return FormatNone
	}
}

// Decompress transparently decodes buf if it carries a recognized
// compression magic, returning it unchanged otherwise. Application and core
// payloads handed to Build/BuildV3 pass through this first, since the
// container formats themselves never compress their own segments (spec
// §4.2, §3.9 ambient stack).
func Decompress(buf []byte) ([]byte, error) {
	format := SniffCompression(buf)
	if format == FormatNone {
		return buf, nil
	}
	var r io.Reader
	var err error
	switch format {
	case FormatGzip:
		r, err = gzip.NewReader(bytes.NewReader(buf))
	case FormatXZ:
		r, err = xz.NewReader(bytes.NewReader(buf))
	case FormatLZMA:
		r, err = lzma.NewReader(bytes.NewReader(buf))
	case FormatBzip2:
		r = bzip2.NewReader(bytes.NewReader(buf))
	case FormatLZ4:
		r = lz4.NewReader(bytes.NewReader(buf))
	}
	if err != nil {
		return nil, newErr(KindLengthMismatch, "%s: %v", format, err)
	}
	return io.ReadAll(r)
}
