package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteAndRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "tts/abc-123.wav", []byte("RIFFdata"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "tts/abc-123.wav" {
		t.Fatalf("unexpected key %q", key)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "RIFFdata" {
		t.Fatalf("unexpected data %q", data)
	}

	path, err := store.Path(key)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(store.BasePath(), "tts") {
		t.Fatalf("unexpected path %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact missing on disk: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.wav", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}
