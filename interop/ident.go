package interop

import (
	"unicode"
	"unicode/utf8"
)

var reserved = map[string]struct{}{
	"await": {}, "break": {}, "case": {}, "catch": {}, "class": {}, "const": {},
	"continue": {}, "debugger": {}, "default": {}, "delete": {}, "do": {},
	"else": {}, "enum": {}, "export": {}, "extends": {}, "false": {},
	"finally": {}, "for": {}, "function": {}, "if": {}, "implements": {},
	"import": {}, "in": {}, "instanceof": {}, "interface": {}, "let": {},
	"new": {}, "null": {}, "package": {}, "private": {}, "protected": {},
	"public": {}, "return": {}, "static": {}, "super": {}, "switch": {},
	"this": {}, "throw": {}, "true": {}, "try": {}, "typeof": {}, "var": {},
	"void": {}, "while": {}, "with": {}, "yield": {}, "arguments": {}, "eval": {},
	"value": {}, "require": {},
}

// IsIdentifier reports whether s can be bound as a module-scope const and
// exported by name. Reserved words and the names the shim itself uses
// ("value" and "require") are rejected.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if _, ok := reserved[s]; ok {
		return false
	}
	for i, r := range s {
		if r == utf8.RuneError {
			return false
		}
		switch {
		case r == '$' || r == '_':
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r)):
		default:
			return false
		}
	}
	return true
}
