package interop

import (
	"bytes"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

const (
	// CJSImportPrefix marks a request issued by require().
	CJSImportPrefix = "__cjs:"
	// CJSLoaderPrefix marks a path that must be loaded as CommonJS.
	CJSLoaderPrefix = "__cjsm:"
)

// Specifier is a canonical module name split into its routing flags.
type Specifier struct {
	// Name is the identity the module is declared under.
	Name string
	// Path is the filesystem path or registry key to read.
	Path string
	// FromCJSImport is set for names carrying CJSImportPrefix.
	FromCJSImport bool
	// IsCJS is set for names carrying CJSLoaderPrefix.
	IsCJS bool
}

// Classify splits the internal markers off a canonical module name.
// A require() request keeps its marker in Name so the engine tracks it as a
// distinct module; a CommonJS-loader marker is dropped from both.
func Classify(name string) Specifier {
	if !strings.HasPrefix(name, "__") {
		return Specifier{Name: name, Path: name}
	}
	if p, ok := strings.CutPrefix(name, CJSImportPrefix); ok {
		return Specifier{Name: name, Path: p, FromCJSImport: true}
	}
	if p, ok := strings.CutPrefix(name, CJSLoaderPrefix); ok {
		return Specifier{Name: p, Path: p, IsCJS: true}
	}
	return Specifier{Name: name, Path: name}
}

// StripMarkers removes either internal marker from name.
func StripMarkers(name string) string {
	if p, ok := strings.CutPrefix(name, CJSImportPrefix); ok {
		return p
	}
	if p, ok := strings.CutPrefix(name, CJSLoaderPrefix); ok {
		return p
	}
	return name
}

// Synthesize returns the source of an ES module re-exporting the CommonJS
// module specifier. keys are the own enumerable keys of its export value;
// nil means the value is not an object and only the default export is emitted.
//
// Keys that are valid identifiers are destructured directly. Any other key is
// exported under a string export name through a generated local binding
// whose name never collides with a destructured key.
// The key "default" is never re-exported by name.
func Synthesize(specifier string, keys []string) []byte {
	var b bytes.Buffer
	b.Grow(len(specifier) + 64 + 16*len(keys))

	b.WriteString("const value = require(")
	b.WriteString(quote(specifier))
	b.WriteString(");export default value.default||value;")

	var idents, others []string
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "default" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if IsIdentifier(k) {
			idents = append(idents, k)
		} else {
			others = append(others, k)
		}
	}

	if len(idents) > 0 {
		list := strings.Join(idents, ",")
		b.WriteString("const{")
		b.WriteString(list)
		b.WriteString("}=value;export{")
		b.WriteString(list)
		b.WriteString("};")
	}

	n := 0
	for _, k := range others {
		var local string
		for {
			local = "__cjs" + strconv.Itoa(n)
			n++
			if _, taken := seen[local]; !taken {
				break
			}
		}
		q := quote(k)
		b.WriteString("const ")
		b.WriteString(local)
		b.WriteString("=value[")
		b.WriteString(q)
		b.WriteString("];export{")
		b.WriteString(local)
		b.WriteString(" as ")
		b.WriteString(q)
		b.WriteString("};")
	}

	return b.Bytes()
}

// JSON wraps a JSON document as an ES module whose default export is the
// parsed value.
func JSON(source []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(source) + 48)
	b.WriteString("export default JSON.parse(")
	b.WriteString(quote(string(source)))
	b.WriteString(");")
	return b.Bytes()
}

// StripShebang blanks a leading "#!" interpreter line by turning it into a
// line comment. Line numbers are preserved.
func StripShebang(source []byte) []byte {
	if !bytes.HasPrefix(source, []byte("#!")) {
		return source
	}
	out := bytes.Clone(source)
	out[0], out[1] = '/', '/'
	return out
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	enc, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	// U+2028 and U+2029 terminate lines in pre-ES2019 string literals.
	return lineSeparators.Replace(string(enc))
}

var lineSeparators = strings.NewReplacer("\u2028", `\u2028`, "\u2029", `\u2029`)
