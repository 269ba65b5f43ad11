package registry

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/errors"
)

// ArchiveVersion identifies the archive layout.
const ArchiveVersion = 1

type archive struct {
	Version int            `cbor:"1,keyasint"`
	Format  string         `cbor:"2,keyasint"`
	Modules []archiveEntry `cbor:"3,keyasint"`
}

type archiveEntry struct {
	Name      string `cbor:"1,keyasint"`
	Container []byte `cbor:"2,keyasint"`
}

var archiveEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("registry: failed to create CBOR enc mode: %v", err))
	}
	archiveEncMode = em
}

// Archive writes the registry as a CBOR archive. Output is deterministic.
func (r *Registry) Archive(w io.Writer) error {
	a := archive{
		Version: ArchiveVersion,
		Format:  bytecode.Version,
		Modules: make([]archiveEntry, 0, r.Len()),
	}
	for _, e := range r.Entries() {
		a.Modules = append(a.Modules, archiveEntry(e))
	}
	data, err := archiveEncMode.Marshal(&a)
	if err != nil {
		return errors.Wrap(errors.PhaseRegistry, errors.KindInvalidData, err, "encode archive")
	}
	_, err = w.Write(data)
	return err
}

// Open reads a CBOR archive written by Archive.
func Open(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRegistry, errors.KindInvalidData, err, "read archive")
	}
	return Decode(data)
}

// Decode parses an archive held in memory.
func Decode(data []byte) (*Registry, error) {
	var a archive
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(errors.PhaseRegistry, errors.KindInvalidData, err, "decode archive")
	}
	if a.Version != ArchiveVersion {
		return nil, errors.New(errors.PhaseRegistry, errors.KindInvalidVersion).
			Value(a.Version).
			Detail("unsupported archive version %d", a.Version).
			Build()
	}
	if a.Format != bytecode.Version {
		return nil, errors.New(errors.PhaseRegistry, errors.KindInvalidVersion).
			Value(a.Format).
			Detail("archive built for bytecode %q", a.Format).
			Build()
	}
	entries := make([]Entry, 0, len(a.Modules))
	for _, m := range a.Modules {
		entries = append(entries, Entry(m))
	}
	return fromEntries(entries), nil
}
