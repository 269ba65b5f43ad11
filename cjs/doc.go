// Package cjs implements the runtime-global CommonJS require on top of goja.
//
// The loader kernel uses a Runtime to evaluate CommonJS modules and enumerate
// the keys of their module.exports, from which it synthesizes ES module
// shims. Resolution inside require() follows the same Node algorithm as ES
// imports, with the require condition.
//
// The builtin "module" exposes the hook registration API:
//
//	const { registerHooks, isBuiltin, builtinModules, createRequire } = require("module");
//	registerHooks({
//	  resolve(specifier, context, nextResolve) { ... },
//	  load(url, context, nextLoad) { ... },
//	});
//
// A Runtime is not safe for concurrent use.
package cjs
