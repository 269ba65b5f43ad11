package bytecode

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

//go:embed default.dict
var defaultDictionary []byte

// zstdDictMagic opens dictionaries in the zstd dictionary format.
const zstdDictMagic uint32 = 0xEC30A437

// DefaultMaxDecodedSize bounds the memory a single decode may use.
const DefaultMaxDecodedSize = 256 << 20

// Dictionary is the shared compression dictionary. Streaming decoders are
// pooled; the encoder is built on first use and shared by every caller.
type Dictionary struct {
	raw []byte

	decoders sync.Pool

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error
}

var (
	defaultDict     *Dictionary
	defaultDictOnce sync.Once
)

// DefaultDictionary returns the dictionary compiled into the binary.
func DefaultDictionary() *Dictionary {
	defaultDictOnce.Do(func() {
		defaultDict = NewDictionary(defaultDictionary)
	})
	return defaultDict
}

// NewDictionary wraps dictionary bytes. Bytes in the zstd dictionary format
// are registered as such; anything else is used as raw content.
// The slice is copied.
func NewDictionary(b []byte) *Dictionary {
	return &Dictionary{raw: bytes.Clone(b)}
}

// Bytes returns the dictionary content.
func (d *Dictionary) Bytes() []byte {
	return d.raw
}

// IsZstd reports whether the dictionary is in the zstd dictionary format.
func (d *Dictionary) IsZstd() bool {
	return len(d.raw) >= 8 && binary.LittleEndian.Uint32(d.raw) == zstdDictMagic
}

// decoder returns a single-threaded streaming decoder reading r. Return it
// with putDecoder once the stream was read to completion.
func (d *Dictionary) decoder(r io.Reader) (*zstd.Decoder, error) {
	if dec, ok := d.decoders.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err == nil {
			return dec, nil
		}
		dec.Close()
	}
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxMemory(DefaultMaxDecodedSize),
	}
	switch {
	case d.IsZstd():
		opts = append(opts, zstd.WithDecoderDicts(d.raw))
	case len(d.raw) > 0:
		opts = append(opts, zstd.WithDecoderDictRaw(0, d.raw))
	}
	return zstd.NewReader(r, opts...)
}

func (d *Dictionary) putDecoder(dec *zstd.Decoder) {
	if err := dec.Reset(nil); err != nil {
		dec.Close()
		return
	}
	d.decoders.Put(dec)
}

func (d *Dictionary) encoder() (*zstd.Encoder, error) {
	d.encOnce.Do(func() {
		opts := []zstd.EOption{
			zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		}
		switch {
		case d.IsZstd():
			opts = append(opts, zstd.WithEncoderDict(d.raw))
		case len(d.raw) > 0:
			opts = append(opts, zstd.WithEncoderDictRaw(0, d.raw))
		}
		d.enc, d.encErr = zstd.NewWriter(nil, opts...)
	})
	return d.enc, d.encErr
}
