package catalog

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenMixesDirectoriesAndPacks(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.json": "from dir", "b.json": "only dir"})

	pack := filepath.Join(t.TempDir(), "over.ocat")
	w, err := CreatePack(pack, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Add("a.json", strings.NewReader("from pack")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	cat, err := Open(nil, dir, pack)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cat.Close()

	for name, want := range map[string]string{"a.json": "from pack", "b.json": "only dir"} {
		fid, err := cat.Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		got, err := cat.ReadSync(fid)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestOpenMissingPath(t *testing.T) {
	if _, err := Open(nil, filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("want error for a missing path")
	}
}
