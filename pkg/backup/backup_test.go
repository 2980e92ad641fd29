package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*BackupService, string, *time.Time) {
	t.Helper()
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service := NewBackupService(storage, "1")
	service.now = func() time.Time { return clock }
	return service, tmpDir, &clock
}

func TestBackupService_CreateAndRestore(t *testing.T) {
	service, tmpDir, _ := newTestService(t)

	data := &BackupData{
		Records: map[string]json.RawMessage{
			"s1": json.RawMessage(`{"id":"s1","status":"open"}`),
		},
		Metadata: map[string]string{"driver": "memory"},
	}

	backupName, err := service.CreateBackup(context.Background(), data)
	if err != nil {
		t.Fatalf("failed to create backup: %v", err)
	}
	if backupName != "backup-20260301T120000.000Z.json" {
		t.Errorf("unexpected backup name %q", backupName)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, backupName)); err != nil {
		t.Fatalf("backup file does not exist: %v", err)
	}

	restored, err := service.RestoreBackup(context.Background(), backupName)
	if err != nil {
		t.Fatalf("failed to restore backup: %v", err)
	}
	if restored.Version != "1" {
		t.Errorf("expected version '1', got %q", restored.Version)
	}
	if string(restored.Records["s1"]) != `{"id":"s1","status":"open"}` {
		t.Errorf("record not preserved: %s", restored.Records["s1"])
	}
	if restored.Metadata["driver"] != "memory" {
		t.Errorf("metadata not preserved: %v", restored.Metadata)
	}
}

func TestBackupService_RestoreRejectsMissingVersion(t *testing.T) {
	service, tmpDir, _ := newTestService(t)
	if err := os.WriteFile(filepath.Join(tmpDir, "backup-bad.json"), []byte(`{"records":{}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := service.RestoreBackup(context.Background(), "backup-bad.json"); err == nil {
		t.Fatal("expected error for backup without version")
	}
}

func TestBackupService_ListLatestPrune(t *testing.T) {
	service, _, clock := newTestService(t)
	ctx := context.Background()

	if _, err := service.Latest(ctx); !errors.Is(err, ErrNoBackups) {
		t.Fatalf("expected ErrNoBackups, got %v", err)
	}

	var names []string
	for i := 0; i < 4; i++ {
		name, err := service.CreateBackup(ctx, &BackupData{})
		if err != nil {
			t.Fatalf("failed to create backup: %v", err)
		}
		names = append(names, name)
		*clock = clock.Add(time.Minute)
	}

	listed, err := service.ListBackups(ctx)
	if err != nil {
		t.Fatalf("failed to list backups: %v", err)
	}
	if strings.Join(listed, ",") != strings.Join(names, ",") {
		t.Errorf("expected %v, got %v", names, listed)
	}

	latest, err := service.Latest(ctx)
	if err != nil || latest != names[3] {
		t.Errorf("expected latest %s, got %s (%v)", names[3], latest, err)
	}

	removed, err := service.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	listed, _ = service.ListBackups(ctx)
	if len(listed) != 2 || listed[0] != names[2] {
		t.Errorf("expected newest two backups to remain, got %v", listed)
	}
}

func TestFileStorage(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "test.txt", strings.NewReader("test data")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := storage.Load(ctx, "test.txt")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	content, _ := io.ReadAll(loaded)
	loaded.Close()
	if string(content) != "test data" {
		t.Errorf("unexpected content %q", content)
	}

	files, err := storage.List(ctx, "test")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}

	if err := storage.Delete(ctx, "test.txt"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
}

func TestFileStorage_RejectsPathTraversal(t *testing.T) {
	storage, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	for _, name := range []string{"../escape.json", "sub/dir.json", "", ".hidden"} {
		if err := storage.Save(context.Background(), name, strings.NewReader("x")); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}
