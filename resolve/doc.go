// Package resolve maps import specifiers to canonical module names.
//
// Resolution is a chain of Resolvers tried in order. Each resolver either
// returns a name, declines (ok=false) so the next one runs, or fails with an
// error that aborts the chain. The default chain is:
//
//	Builtin   - builtin module names, "node:" prefix stripped
//	Embedded  - names present in the static artifact registry
//	Node      - the Node.js CommonJS "all together" algorithm with
//	            package.json exports/imports, self reference and a cached
//	            node_modules directory walk
//	File      - raw filesystem paths under a fixed set of search roots
//
// When every resolver declines the chain returns errors.Unresolved naming
// both the base module and the specifier.
//
// All filesystem access goes through an afero.Fs so the algorithm runs
// unchanged against the OS filesystem or an in-memory tree. Paths are
// slash-separated.
package resolve
