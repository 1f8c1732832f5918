package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// outputPaths maps each input to <outputDir>/<stem>.<ext>. Inputs that share a
// stem get "-1", "-2", ... suffixes in input order so no output overwrites
// another from the same batch.
func outputPaths(inputs []string, outputDir, ext string) []string {
	taken := make(map[string]bool, len(inputs))
	out := make([]string, len(inputs))

	for i, input := range inputs {
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		if stem == "" || stem == "." || stem == string(filepath.Separator) {
			stem = fmt.Sprintf("image_%d", i)
		}

		name := stem + "." + ext
		for n := 1; taken[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s-%d.%s", stem, n, ext)
		}
		taken[strings.ToLower(name)] = true
		out[i] = filepath.Join(outputDir, name)
	}
	return out
}
