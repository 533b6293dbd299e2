//go:build integration

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

// startPostgres starts a PostgreSQL testcontainer and returns a migrated Store.
func startPostgres(t *testing.T, ctx context.Context) *Store {
	t.Helper()
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("dinobot_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}
	s, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestUploadLedger(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t, ctx)

	first := &Upload{
		Path:      "/uploads/upload-1-aaaaaaaa.jpg",
		Digest:    "d1",
		SizeBytes: 10,
		Source:    SourcePhoto,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	second := &Upload{
		Path:      "/uploads/upload-2-bbbbbbbb.jpg",
		Digest:    "d2",
		SizeBytes: 20,
		Source:    SourceExercise,
		MatchedID: "img-7",
	}
	for _, u := range []*Upload{first, second} {
		if err := s.RecordUpload(ctx, u); err != nil {
			t.Fatalf("record: %v", err)
		}
		if u.ID == "" {
			t.Error("expected generated id")
		}
	}

	got, err := s.ListUploads(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d uploads, want 2", len(got))
	}
	if got[0].Digest != "d2" || got[0].MatchedID != "img-7" || got[0].Source != SourceExercise {
		t.Errorf("newest upload wrong: %+v", got[0])
	}
	if got[1].Digest != "d1" || got[1].MatchedID != "" {
		t.Errorf("oldest upload wrong: %+v", got[1])
	}

	limited, err := s.ListUploads(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t, ctx)
	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Errorf("second migrate: %v", err)
	}
	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 || applied[0] != "001_create_uploads" {
		t.Errorf("unexpected applied migrations %v", applied)
	}
}

func TestMigrateFailedFileIsRolledBack(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t, ctx)

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "001_create_uploads.up.sql"), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "002_broken.up.sql"),
		[]byte("CREATE TABLE half_done (id INT); SELECT no_such_column FROM uploads;"), 0o644)
	if err := s.Migrate(ctx, dir); err == nil {
		t.Fatal("expected the broken migration to fail")
	}

	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 {
		t.Errorf("failed migration must not be recorded, got %v", applied)
	}
	var exists bool
	s.db.QueryRow(ctx, `SELECT to_regclass('half_done') IS NOT NULL`).Scan(&exists)
	if exists {
		t.Error("failed migration left a table behind")
	}

	os.WriteFile(filepath.Join(dir, "002_broken.up.sql"), []byte("CREATE TABLE half_done (id INT);"), 0o644)
	if err := s.Migrate(ctx, dir); err != nil {
		t.Fatalf("retry: %v", err)
	}
	applied, _ = s.AppliedMigrations(ctx)
	if len(applied) != 2 || applied[1] != "002_broken" {
		t.Errorf("unexpected applied migrations %v", applied)
	}
}
