package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/csvinsights/internal/utils"
)

func TestHasCSVExtension(t *testing.T) {
	cases := map[string]bool{
		"data.csv":     true,
		"DATA.CSV":     true,
		" spaced.csv ": true,
		"data.csv.txt": false,
		"data.tsv":     false,
		"csv":          false,
		"":             false,
	}
	for in, want := range cases {
		if got := utils.HasCSVExtension(in); got != want {
			t.Errorf("HasCSVExtension(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSafeWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	if err := utils.SafeWriteFile(path, []byte("one")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	if err := utils.SafeWriteFile(path, []byte("two")); err != nil {
		t.Fatalf("SafeWriteFile overwrite: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "two" {
		t.Fatalf("read back = %q, %v", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
