package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDirectoryDrawer(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"srtm-index.json": `{"prefix":"srtm"}`,
		"srtm-L00.mip":    "level zero",
		"srtm-L01.mip":    "level one",
		"readme.txt":      "ignored by glob",
	})
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	d, err := OpenDirectory(dir, "srtm-*")
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	cat := New(nil)
	if err := cat.AddDrawer(d); err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	if cat.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cat.Len())
	}

	mips, err := cat.FindMatching("*-L??.mip")
	if err != nil {
		t.Fatal(err)
	}
	if len(mips) != 2 {
		t.Fatalf("FindMatching returned %d files, want 2", len(mips))
	}
	first, _ := cat.Stat(mips[0])
	if first.Name != "srtm-L00.mip" {
		t.Errorf("first match = %q, want srtm-L00.mip (name order)", first.Name)
	}

	data, err := cat.ReadMapped(mips[1], &Extent{Offset: 6, Length: 3})
	if err != nil {
		t.Fatalf("ReadMapped: %v", err)
	}
	if string(data) != "one" {
		t.Errorf("ReadMapped extent = %q, want %q", data, "one")
	}

	if _, err := cat.ReadMapped(mips[1], &Extent{Offset: 6, Length: 100}); !errors.Is(err, ErrExtent) {
		t.Errorf("oversized extent error = %v, want ErrExtent", err)
	}

	sync, err := cat.ReadSync(mips[0])
	if err != nil {
		t.Fatal(err)
	}
	sync[0] = 'X'
	again, _ := cat.ReadMapped(mips[0], nil)
	if string(again) != "level zero" {
		t.Errorf("ReadSync must return a private copy, mapping now %q", again)
	}
}

func TestFindMatchingBadGlob(t *testing.T) {
	cat := New(nil)
	if _, err := cat.FindMatching("["); err == nil {
		t.Error("expected an error for a malformed glob")
	}
}

func TestUnknownFile(t *testing.T) {
	cat := New(nil)
	if _, err := cat.ReadSync(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadSync(7) error = %v, want ErrNotFound", err)
	}
	if _, err := cat.Lookup("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup error = %v, want ErrNotFound", err)
	}
}

func TestPackRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "world.ocat")
			w, err := CreatePack(path, compress)
			if err != nil {
				t.Fatal(err)
			}
			files := []struct{ name, body string }{
				{"a-index.json", `{"prefix":"a","kind":"height"}`},
				{"a-L00.mip", strings.Repeat("x", 1000)},
				{"empty.bin", ""},
			}
			for _, f := range files {
				if err := w.Add(f.name, strings.NewReader(f.body)); err != nil {
					t.Fatal(err)
				}
			}
			if err := w.Add("a-L00.mip", strings.NewReader("dup")); err == nil {
				t.Error("duplicate names should be rejected")
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}

			d, err := OpenPack(path)
			if err != nil {
				t.Fatalf("OpenPack: %v", err)
			}
			cat := New(nil)
			cat.AddDrawer(d)
			defer cat.Close()

			for _, f := range files {
				fid, err := cat.Lookup(f.name)
				if err != nil {
					t.Fatal(err)
				}
				got, err := cat.ReadSync(fid)
				if err != nil {
					t.Fatal(err)
				}
				if string(got) != f.body {
					t.Errorf("%s: got %d bytes, want %d", f.name, len(got), len(f.body))
				}
			}
		})
	}
}

func TestOpenPackRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ocat")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenPack(path); !errors.Is(err, ErrInvalidPack) {
		t.Errorf("OpenPack error = %v, want ErrInvalidPack", err)
	}
}

func TestLaterDrawerShadows(t *testing.T) {
	base, overlay := t.TempDir(), t.TempDir()
	writeFiles(t, base, map[string]string{"x.json": "base", "y.json": "only base"})
	writeFiles(t, overlay, map[string]string{"x.json": "overlay"})

	cat := New(nil)
	defer cat.Close()
	for _, dir := range []string{base, overlay} {
		d, err := OpenDirectory(dir, "*.json")
		if err != nil {
			t.Fatal(err)
		}
		cat.AddDrawer(d)
	}

	fid, _ := cat.Lookup("x.json")
	got, _ := cat.ReadSync(fid)
	if string(got) != "overlay" {
		t.Errorf("x.json = %q, want overlay", got)
	}
	if cat.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cat.Len())
	}
}

func TestClosedCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"f": "data"})
	d, err := OpenDirectory(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	cat := New(nil)
	cat.AddDrawer(d)
	if err := cat.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.ReadMapped(0, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadMapped after Close error = %v, want ErrClosed", err)
	}
}
