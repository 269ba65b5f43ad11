// Package interop generates the ES module source that bridges CommonJS
// modules into the ES module graph.
//
// Everything here is a pure function of its inputs: no engine, filesystem or
// global state is touched, so the generated text can be tested byte for byte.
//
// Two internal specifier markers travel through resolution and loading:
//
//	__cjs:<path>   the request came from a require() call and must be served
//	               by the CommonJS loader rather than native ES loading
//	__cjsm:<path>  the path is known to be CommonJS and is loaded through an
//	               interop shim
package interop
