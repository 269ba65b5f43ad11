package bytecode

import (
	"encoding/binary"

	"github.com/wippyai/js-runtime/errors"
)

const (
	// Version is the compiled-in container version. Containers carrying any
	// other version are rejected.
	Version = "lrt01"

	// FlagCompressed marks a zstd payload preceded by its decoded size.
	FlagCompressed byte = 'c'
	// FlagUncompressed marks a payload stored verbatim.
	FlagUncompressed byte = 'u'

	// SignatureLength is the version plus the compression flag.
	SignatureLength = len(Version) + 1

	// sizeLength is the width of the declared decoded size.
	sizeLength = 4

	// FileExt is the extension of container files on disk.
	FileExt = ".lrt"
)

// Sentinel errors. Match with errors.Is; returned errors may carry extra
// context such as the offending flag byte.
var (
	ErrInvalidSignatureLength = errors.New(errors.PhaseDecode, errors.KindInvalidSignatureLength).
					Detail("invalid bytecode signature length").Build()
	ErrInvalidVersion = errors.New(errors.PhaseDecode, errors.KindInvalidVersion).
				Detail("invalid bytecode version").Build()
	ErrInvalidCompressionFlag = errors.New(errors.PhaseDecode, errors.KindInvalidCompressionFlag).
					Detail("invalid bytecode signature").Build()
	ErrDecompress = errors.New(errors.PhaseDecode, errors.KindDecompress).
			Detail("bytecode decompression failed").Build()
)

// Header describes a container without touching its payload.
type Header struct {
	// Size is the declared decoded size. Zero for uncompressed containers.
	Size uint32
	// Offset is where the payload starts.
	Offset     int
	Compressed bool
}

// ReadHeader validates the signature of blob and returns its header.
func ReadHeader(blob []byte) (Header, error) {
	if len(blob) < SignatureLength {
		return Header{}, ErrInvalidSignatureLength
	}
	if string(blob[:len(Version)]) != Version {
		return Header{}, ErrInvalidVersion
	}

	switch flag := blob[len(Version)]; flag {
	case FlagUncompressed:
		return Header{Offset: SignatureLength}, nil
	case FlagCompressed:
		if len(blob) < SignatureLength+sizeLength {
			return Header{}, ErrInvalidSignatureLength
		}
		return Header{
			Compressed: true,
			Size:       binary.LittleEndian.Uint32(blob[SignatureLength:]),
			Offset:     SignatureLength + sizeLength,
		}, nil
	default:
		return Header{}, errors.New(errors.PhaseDecode, errors.KindInvalidCompressionFlag).
			Value(flag).
			Detail("invalid bytecode signature: flag %q", flag).
			Build()
	}
}

// IsContainer reports whether blob starts with a valid signature.
func IsContainer(blob []byte) bool {
	_, err := ReadHeader(blob)
	return err == nil
}
