// Package discover turns user-supplied paths into the flat list of image
// files a batch runs over.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"crunch/pkg/imgutil"
)

// ExpandPaths resolves raw paths to absolute image file paths. Directories are
// walked recursively and only files with a supported extension are kept;
// files named directly are kept only if their extension is supported.
// Symlinks to files and directories are followed, each resolved directory is
// walked once, and unreadable entries are reported without stopping the walk.
// The result is in discovery order with duplicates removed.
func ExpandPaths(raw []string) ([]string, error) {
	w := &walker{seen: make(map[string]bool), dirs: make(map[string]bool)}
	for _, p := range raw {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.fail(p, err)
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.fail(p, err)
			continue
		}
		if !info.IsDir() {
			if imgutil.IsSupportedPath(abs) {
				w.add(abs)
			}
			continue
		}
		w.walk(abs)
	}
	return w.out, errors.Join(w.errs...)
}

type walker struct {
	seen map[string]bool
	dirs map[string]bool
	out  []string
	errs []error
}

func (w *walker) add(path string) {
	if !w.seen[path] {
		w.seen[path] = true
		w.out = append(w.out, path)
	}
}

func (w *walker) fail(path string, err error) {
	w.errs = append(w.errs, fmt.Errorf("%s: %w", path, err))
}

// walk visits root, which may itself be a symlink, reporting files under
// root's own path rather than the link target.
func (w *walker) walk(root string) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		w.fail(root, err)
		return
	}
	if w.dirs[resolved] {
		return
	}
	w.dirs[resolved] = true

	_ = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(resolved, path)
		if relErr != nil {
			rel = "."
		}
		shown := filepath.Join(root, rel)
		if err != nil {
			w.fail(shown, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != resolved {
				if w.dirs[path] {
					return fs.SkipDir
				}
				w.dirs[path] = true
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			target, statErr := os.Stat(path)
			switch {
			case statErr != nil:
				w.fail(shown, statErr)
			case target.IsDir():
				w.walk(shown)
			case target.Mode().IsRegular() && imgutil.IsSupportedPath(shown):
				w.add(shown)
			}
			return nil
		}
		if d.Type().IsRegular() && imgutil.IsSupportedPath(shown) {
			w.add(shown)
		}
		return nil
	})
}
