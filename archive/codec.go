package archive

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Codec compresses and decompresses file bodies. The on-disk format does
// not record which codec produced a file's bytes; the facade only knows
// compression happened at all when a record's CompressedSize differs from
// its UncompressedSize (§9 "Compression codec"). Callers needing a
// different codec than the default can implement this interface and pass
// it via Options.Codec.
type Codec interface {
	Compress(src []byte) ([]byte, error)
	Decompress(dst []byte, src []byte) error
}

// zlibCodec is the default codec, assumed by the format to be zlib-family
// (§4.7). It wraps klauspost/compress/zlib rather than the standard
// library's compress/zlib: same wire format, faster in practice.
type zlibCodec struct{}

func (zlibCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(dst []byte, src []byte) error {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.ReadFull(r, dst)
	return err
}

// DefaultCodec is the zlib-family codec used when Options.Codec is nil.
func DefaultCodec() Codec { return zlibCodec{} }
