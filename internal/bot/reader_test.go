package bot

import (
	"errors"
	"io/fs"
	"path"
	"testing"
	"testing/fstest"
)

type visited struct {
	name, parent string
	depth        int
}

func readAll(t *testing.T, fsys fs.FS, root string, load LoadFunc[string]) ([]visited, error) {
	t.Helper()
	var nodes []visited
	err := Read(fsys, root, load, func(node Node[string], depth int) {
		nodes = append(nodes, visited{name: node.Name, parent: node.ParentDir, depth: depth})
	})
	return nodes, err
}

func loadPath(_ fs.FS, p string) (string, error) {
	return p, nil
}

func TestRead_OnlyRecognizedExtensions(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.yaml":      file(""),
		"root/b.yml":       file(""),
		"root/c.txt":       file(""),
		"root/d.go":        file(""),
		"root/sub/e.json":  file(""),
		"root/sub/f.yaml":  file(""),
		"root/sub/g.yamlx": file(""),
	}

	var paths []string
	err := Read(fsys, "root", loadPath, func(node Node[string], _ int) {
		paths = append(paths, node.Payload)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(paths) != 3 {
		t.Fatalf("expected 3 files, got %d: %v", len(paths), paths)
	}
	for _, p := range paths {
		if !IsRecognized(p) {
			t.Errorf("expected only recognized files, got %q", p)
		}
		if ext := path.Ext(p); ext != ".yaml" && ext != ".yml" {
			t.Errorf("unexpected extension %q", ext)
		}
	}
}

func TestRead_SubdirectoriesBeforeFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.yaml":         file(""),
		"root/sub/b.yaml":     file(""),
		"root/sub/deep/c.yml": file(""),
	}

	nodes, err := readAll(t, fsys, "root", loadPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []visited{
		{name: "c", parent: "deep", depth: 2},
		{name: "b", parent: "sub", depth: 1},
		{name: "a", parent: "root", depth: 0},
	}
	if len(nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(nodes))
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Errorf("node %d: expected %+v, got %+v", i, want[i], nodes[i])
		}
	}
}

func TestRead_LoadFailureSkipsFile(t *testing.T) {
	fsys := fstest.MapFS{
		"root/good.yaml": file(""),
		"root/bad.yaml":  file(""),
	}

	nodes, err := readAll(t, fsys, "root", func(fsys fs.FS, p string) (string, error) {
		if path.Base(p) == "bad.yaml" {
			return "", errors.New("boom")
		}
		return p, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(nodes) != 1 || nodes[0].name != "good" {
		t.Errorf("expected only good to be visited, got %+v", nodes)
	}
}

func TestRead_MissingRoot(t *testing.T) {
	_, err := readAll(t, fstest.MapFS{}, "missing", loadPath)

	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Errorf("expected ErrDirectoryNotFound, got %v", err)
	}
}

func TestRead_RootIsFile(t *testing.T) {
	fsys := fstest.MapFS{"root": file("not a directory")}

	_, err := readAll(t, fsys, "root", loadPath)

	if !errors.Is(err, ErrDirectoryRead) {
		t.Errorf("expected ErrDirectoryRead, got %v", err)
	}
}

func TestLoadDefinition(t *testing.T) {
	fsys := fstest.MapFS{
		"empty.yaml":   file(""),
		"task.yaml":    file("name: Sync\nschedule: \"0 * * * * *\"\nrunOnStart: true\n"),
		"unknown.yaml": file("schedul: typo\n"),
	}

	def, err := LoadDefinition[TaskDefinition](fsys, "empty.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def != (TaskDefinition{}) {
		t.Errorf("expected zero definition, got %+v", def)
	}

	def, err = LoadDefinition[TaskDefinition](fsys, "task.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "Sync" || !def.RunOnStart || def.Schedule != "0 * * * * *" {
		t.Errorf("unexpected definition %+v", def)
	}

	if _, err := LoadDefinition[TaskDefinition](fsys, "unknown.yaml"); err == nil {
		t.Error("expected error for unknown key, got nil")
	}
}
