// Package registry holds precompiled module containers shipped with the
// runtime binary.
//
// A Registry is immutable once built. Entries are sorted by name and looked
// up by binary search, so concurrent readers need no locking.
//
// Keys are module names: slash-separated paths relative to the bundle root
// with the extension removed ("@llrt/std", "node_modules/uuid/index").
// Opaque chunk artifacts produced by the bundler ("lrt-chunk-*") keep their
// ".js" extension so that relative chunk imports resolve to them verbatim.
//
// Registries are built from a map, from an fs.FS directory of ".lrt" files
// (typically an embed.FS) or from a CBOR archive written by Archive.
package registry
