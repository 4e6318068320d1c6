package tile

import (
	"path/filepath"
	"sort"
	"strings"
)

// Naming conventions shared by the command line and the HTTP server
const (
	DefaultAlphaMarker = "Alpha"
	AlphaSuffix        = ".Alpha"
	HDRExtension       = ".exr"
)

// AlphaPath derives the output path of the composed alpha frame.
// The extension of the last path element is replaced by ".Alpha.exr";
// a path without extension gets ".Alpha.exr" appended.
func AlphaPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + AlphaSuffix + HDRExtension
}

// IsAlpha reports whether path names an alpha tile
func IsAlpha(path, marker string) bool {
	if marker == "" {
		marker = DefaultAlphaMarker
	}
	return strings.Contains(path, marker)
}

// Classify sorts paths lexicographically and splits them into primary and
// alpha tiles. The input slice is not modified.
func Classify(paths []string, marker string) (primary, alpha []string) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	for _, p := range sorted {
		if IsAlpha(p, marker) {
			alpha = append(alpha, p)
		} else {
			primary = append(primary, p)
		}
	}
	return primary, alpha
}
