package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"mediafetch/pkg/fsutil"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "doc.json")

	if err := fsutil.WriteFileAtomic(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("first write: %v", err)
	}

	if err := fsutil.WriteFileAtomic(path, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(got) != `{"a":2}` {
		t.Errorf("content = %s", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}

	if len(entries) != 1 {
		t.Errorf("expected temp files to be gone, found %d entries", len(entries))
	}
}

func TestExistsAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp4")

	if fsutil.Exists(path) {
		t.Fatalf("missing file reported as existing")
	}

	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !fsutil.Exists(path) || fsutil.Size(path) != 5 {
		t.Fatalf("expected existing 5 byte file")
	}

	if fsutil.Exists(dir) {
		t.Errorf("directory reported as file")
	}

	if err := fsutil.RemoveIfExists(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := fsutil.RemoveIfExists(path); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestStripExt(t *testing.T) {
	if got := fsutil.StripExt("/a/b/video.mp4"); got != "/a/b/video" {
		t.Errorf("StripExt() = %s", got)
	}

	if got := fsutil.StripExt("/a/b/noext"); got != "/a/b/noext" {
		t.Errorf("StripExt() = %s", got)
	}
}
