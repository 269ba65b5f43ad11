// Package bytecode reads and writes the precompiled module container.
//
// A container is a short signature followed by the engine's serialized
// bytecode:
//
//	[version "lrt01"][flag 'c'|'u'][u32 LE size, only when 'c'][payload]
//
// Compressed payloads are zstd frames primed with a shared dictionary. The
// dictionary is process-wide, built once on first use and never mutated, so a
// single Codec may decode from many goroutines.
//
// # Decoding
//
//	codec := bytecode.NewCodec(bytecode.DefaultDictionary())
//	payload, err := codec.Decode(blob)
//	if errors.Is(err, bytecode.ErrInvalidVersion) {
//		// produced by an incompatible compiler
//	}
//
// # Self-contained executables
//
// A runtime binary may carry one container appended to its tail:
//
//	[runtime image][container][u64 LE container size]["lrtx"]
//
// ExtractExecutable recovers the container from such an image.
package bytecode
