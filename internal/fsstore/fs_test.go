package fsstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveFileReplacesDestinationAndRemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shot.jpg")
	dst := filepath.Join(dir, "staged", "632OD.jpg")
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst, PrivateFilePerm); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, stat err=%v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Fatalf("destination content = %q, want %q", data, "new")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != PrivateFilePerm {
		t.Fatalf("destination perm = %v, want %v", info.Mode().Perm(), PrivateFilePerm)
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "nope.jpg"), filepath.Join(dir, "x.jpg"), PrivateFilePerm); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	in := map[string]string{"drv_Id": "12"}
	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out map[string]string
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out["drv_Id"] != "12" {
		t.Fatalf("unexpected content: %v", out)
	}
}
