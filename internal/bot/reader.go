package bot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
)

// Node is one loaded handler file.
type Node[T any] struct {
	// Name is the file name without its extension.
	Name string
	// ParentDir is the name of the directory holding the file.
	ParentDir string
	// Path is the full slash-separated path inside the file system.
	Path    string
	Payload T
}

// LoadFunc loads the handler stored at path.
type LoadFunc[T any] func(fsys fs.FS, path string) (T, error)

// VisitFunc receives every loaded node. depth is 0 for files directly in the root.
type VisitFunc[T any] func(node Node[T], depth int)

var recognizedExtensions = []string{".yaml", ".yml"}

// IsRecognized reports whether name has a handler file extension.
func IsRecognized(name string) bool {
	return slices.Contains(recognizedExtensions, path.Ext(name))
}

// Read walks root and loads every recognized file with load, passing the
// result to visit. Each directory's subdirectories are walked before its own
// files are visited. A file that fails to load is logged and skipped.
func Read[T any](fsys fs.FS, root string, load LoadFunc[T], visit VisitFunc[T]) error {
	info, err := fs.Stat(fsys, root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
		}
		return fmt.Errorf("%w %s: %w", ErrDirectoryRead, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w %s: not a directory", ErrDirectoryRead, root)
	}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrDirectoryRead, root, err)
	}

	walk(fsys, root, entries, 0, load, visit)
	return nil
}

func walk[T any](
	fsys fs.FS,
	dir string,
	entries []fs.DirEntry,
	depth int,
	load LoadFunc[T],
	visit VisitFunc[T],
) {
	files := make([]fs.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			if IsRecognized(entry.Name()) {
				files = append(files, entry)
			}
			continue
		}

		sub := path.Join(dir, entry.Name())
		subEntries, err := fs.ReadDir(fsys, sub)
		if err != nil {
			slog.Error("failed to read handler directory", "path", sub, "error", err)
			continue
		}
		walk(fsys, sub, subEntries, depth+1, load, visit)
	}

	for _, file := range files {
		p := path.Join(dir, file.Name())
		payload, err := load(fsys, p)
		if err != nil {
			slog.Error("failed to load handler file", "path", p, "error", err)
			continue
		}

		visit(Node[T]{
			Name:      strings.TrimSuffix(file.Name(), path.Ext(file.Name())),
			ParentDir: path.Base(dir),
			Path:      p,
			Payload:   payload,
		}, depth)
	}
}
