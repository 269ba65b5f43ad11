package bytecode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/wippyai/js-runtime/errors"
)

// Codec decodes and encodes containers against a shared dictionary.
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	dict           *Dictionary
	maxDecodedSize int
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithMaxDecodedSize bounds decoded payloads. Values above
// DefaultMaxDecodedSize are clamped.
func WithMaxDecodedSize(n int) CodecOption {
	return func(c *Codec) {
		if n > 0 && n <= DefaultMaxDecodedSize {
			c.maxDecodedSize = n
		}
	}
}

// NewCodec creates a codec. A nil dictionary selects DefaultDictionary.
func NewCodec(dict *Dictionary, opts ...CodecOption) *Codec {
	if dict == nil {
		dict = DefaultDictionary()
	}
	c := &Codec{
		dict:           dict,
		maxDecodedSize: DefaultMaxDecodedSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dictionary returns the codec's dictionary.
func (c *Codec) Dictionary() *Dictionary {
	return c.dict
}

// MaxDecodedSize returns the decode bound.
func (c *Codec) MaxDecodedSize() int {
	return c.maxDecodedSize
}

// Decode validates blob and returns the engine bytecode it carries.
func (c *Codec) Decode(blob []byte) ([]byte, error) {
	h, err := ReadHeader(blob)
	if err != nil {
		return nil, err
	}
	payload := blob[h.Offset:]

	if !h.Compressed {
		return bytes.Clone(payload), nil
	}

	if int64(h.Size) > int64(c.maxDecodedSize) {
		return nil, errors.New(errors.PhaseDecode, errors.KindDecompress).
			Value(h.Size).
			Detail("declared size %d exceeds limit %d", h.Size, c.maxDecodedSize).
			Build()
	}

	dec, err := c.dict.decoder(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindDecompress).
			Cause(err).
			Detail("dictionary").
			Build()
	}

	// Read at most one byte past the declared size so an oversized frame
	// fails without being inflated.
	out := make([]byte, int(h.Size)+1)
	n, err := io.ReadFull(io.LimitReader(dec, int64(len(out))), out)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		dec.Close()
		return nil, errors.New(errors.PhaseDecode, errors.KindDecompress).
			Cause(err).
			Detail("bytecode decompression failed").
			Build()
	}
	if n > int(h.Size) {
		dec.Close()
		return nil, errors.New(errors.PhaseDecode, errors.KindDecompress).
			Value(n).
			Detail("decoded more than the declared %d bytes", h.Size).
			Build()
	}
	c.dict.putDecoder(dec)
	return out[:n:n], nil
}

// Encode wraps payload in a container. Compressed containers use the codec's
// dictionary at the best compression level.
func (c *Codec) Encode(payload []byte, compress bool) ([]byte, error) {
	if !compress {
		out := make([]byte, 0, SignatureLength+len(payload))
		out = append(out, Version...)
		out = append(out, FlagUncompressed)
		return append(out, payload...), nil
	}

	if uint64(len(payload)) > math.MaxUint32 {
		return nil, errors.InvalidInput(errors.PhaseDecode, "payload too large for container")
	}

	enc, err := c.dict.encoder()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindDecompress, err, "dictionary")
	}

	out := make([]byte, SignatureLength+sizeLength, SignatureLength+sizeLength+len(payload)/2)
	copy(out, Version)
	out[len(Version)] = FlagCompressed
	binary.LittleEndian.PutUint32(out[SignatureLength:], uint32(len(payload)))
	return enc.EncodeAll(payload, out), nil
}
