package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, true)

	if _, found, err := store.Load(); err != nil || found {
		t.Fatalf("fresh store: found=%v err=%v", found, err)
	}

	if err := store.Save(12345, 7); err != nil {
		t.Fatalf("save: %v", err)
	}

	cp, found, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatalf("checkpoint not found after save")
	}
	if cp.LastProcessedBlock != 12345 {
		t.Fatalf("last processed = %d", cp.LastProcessedBlock)
	}
	if cp.ReportsWritten != 7 {
		t.Fatalf("reports written = %d", cp.ReportsWritten)
	}
	if cp.UpdatedAt == "" {
		t.Fatalf("updated_at not set")
	}
}

func TestCheckpointDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, false)

	if err := store.Save(1, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("disabled store must not write files")
	}
	if _, found, err := store.Load(); err != nil || found {
		t.Fatalf("disabled store: found=%v err=%v", found, err)
	}
}

func TestCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewCheckpointStore(path, true)
	if _, _, err := store.Load(); err == nil {
		t.Fatalf("corrupt checkpoint must fail to load")
	}
}
