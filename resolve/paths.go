package resolve

import (
	"path"
	"slices"
	"strings"
)

// SupportedExtensions are appended, in order, when probing for a file.
var SupportedExtensions = []string{".js", ".mjs", ".cjs", ".lrt"}

// JSExtensions are the source extensions used to complete export targets.
var JSExtensions = []string{".js", ".mjs", ".cjs"}

// IsSupportedExt reports whether ext short-circuits resolution when the
// file exists.
func IsSupportedExt(ext string) bool {
	return slices.Contains(SupportedExtensions, ext)
}

func isRelative(x string) bool {
	return x == "." || x == ".." || strings.HasPrefix(x, "./") || strings.HasPrefix(x, "../")
}

// splitPackage splits x into a package scope and a subpath, moving n
// segments from the end into the subpath. last is set once x has no more
// separators to split on, in which case the subpath is ".".
func splitPackage(x string, n int) (sub, scope string, last bool) {
	p := len(x)
	for i := 0; i < n; i++ {
		j := strings.LastIndexByte(x[:p], '/')
		if j < 0 {
			return ".", x, true
		}
		p = j
	}
	return x[p+1:], x[:p], false
}

// subpathKey converts a split subpath into an exports map key.
func subpathKey(sub string) string {
	if sub == "." {
		return sub
	}
	return "./" + sub
}

func joinPath(elem ...string) string {
	return path.Join(elem...)
}
