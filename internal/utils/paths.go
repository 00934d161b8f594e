package utils

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// FindUp walks from dir towards the filesystem root and returns the first
// path dir/name that exists, trying names in order at each level
func FindUp(dir string, names ...string) string {
	for {
		for _, name := range names {
			path := filepath.Join(dir, name)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// ExportedName turns a file name like "triangle.vert" into an exported Go
// identifier like "TriangleVert"
func ExportedName(file string) string {
	var b strings.Builder
	upper := true

	for _, r := range filepath.Base(file) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}

		if b.Len() == 0 && unicode.IsDigit(r) {
			b.WriteString("Shader")
		}

		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}

		b.WriteRune(r)
	}

	if b.Len() == 0 {
		return "Shader"
	}

	return b.String()
}
