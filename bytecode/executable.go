package bytecode

import (
	"bytes"
	"encoding/binary"
)

// ExecutableMarker terminates a self-contained executable image.
const ExecutableMarker = "lrtx"

// TrailerLength is the size of the trailer: the container size as a u64 LE
// followed by ExecutableMarker.
const TrailerLength = 8 + len(ExecutableMarker)

// ExtractExecutable returns the container appended to a runtime image, or
// false when the image carries none.
func ExtractExecutable(image []byte) ([]byte, bool) {
	if len(image) < TrailerLength || !bytes.HasSuffix(image, []byte(ExecutableMarker)) {
		return nil, false
	}
	end := len(image) - TrailerLength
	size := binary.LittleEndian.Uint64(image[end:])
	if size == 0 || size > uint64(end) {
		return nil, false
	}
	return image[end-int(size) : end], true
}

// AppendExecutable appends container to a runtime image with the trailer
// ExtractExecutable expects.
func AppendExecutable(image, container []byte) []byte {
	out := make([]byte, 0, len(image)+len(container)+TrailerLength)
	out = append(out, image...)
	out = append(out, container...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(container)))
	return append(out, ExecutableMarker...)
}
