package setarchive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"tar.gz", TarGz, false},
		{"tar.zst", TarZst, false},
		{"zip", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q) expected error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParseFormat(%q) = %v, %v, want %v", c.in, got, err, c.want)
		}
	}
}

func TestEntryName(t *testing.T) {
	got := entryName(filepath.FromSlash("/data/dir/a.txt"))
	if got != "data/dir/a.txt" {
		t.Errorf("entryName = %q, want data/dir/a.txt", got)
	}
}

// readArchive decompresses and lists the archive's entries by name.
func readArchive(t *testing.T, path string, format Format) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case TarGz:
		gz, err := pgzip.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		defer gz.Close()
		r = gz
	case TarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		defer zr.Close()
		r = zr
	}

	entries := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestExport(t *testing.T) {
	srcDir := t.TempDir()
	a := filepath.Join(srcDir, "a.txt")
	b := filepath.Join(srcDir, "sub", "b.txt")
	if err := os.WriteFile(a, []byte("alpha"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(b), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("beta"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, format := range []Format{TarGz, TarZst} {
		t.Run(format.String(), func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), "set."+format.String())
			e := NewExporter(64)
			if err := e.Export(context.Background(), archive, format, []string{a, b}); err != nil {
				t.Fatalf("Export returned error: %v", err)
			}

			entries := readArchive(t, archive, format)
			if got := entries[entryName(a)]; got != "alpha" {
				t.Errorf("entry %q = %q, want alpha", entryName(a), got)
			}
			if got := entries[entryName(b)]; got != "beta" {
				t.Errorf("entry %q = %q, want beta", entryName(b), got)
			}
		})
	}
}

func TestExportFailureLeavesNoPartialArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "set.tar.gz")

	e := NewExporter(64)
	err := e.Export(context.Background(), archive, TarGz,
		[]string{filepath.Join(dir, "vanished.txt")})
	if err == nil {
		t.Fatal("expected an error for a vanished source")
	}

	if _, statErr := os.Stat(archive); !os.IsNotExist(statErr) {
		t.Error("failed export left an archive behind")
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("failed export left temp files: %v", leftovers)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	e := NewExporter(64)
	err := e.Export(context.Background(), filepath.Join(t.TempDir(), "x"), Format("rar"), nil)
	if err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
