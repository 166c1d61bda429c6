package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRun(source models.SourceTag) *models.Run {
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	run := models.NewRun(source, "2026-03-14", "Billboard Hot 100 2026-03-14", started)
	run.Finish(models.RunCompleted, 3, &models.PlaylistResult{
		PlaylistID:   "pl1",
		PlaylistURL:  "https://open.spotify.com/playlist/pl1",
		AddedCount:   2,
		SkippedCount: 1,
	}, nil, started.Add(2*time.Minute))
	return run
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without sequence")
	}
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun(models.SourceBillboard)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun(models.SourceBillboard)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if got.Source != models.SourceBillboard {
			t.Errorf("expected source billboard, got %s", got.Source)
		}
		if got.Added != 2 || got.Skipped != 1 || got.Total != 3 {
			t.Errorf("expected 2/1/3, got %d/%d/%d", got.Added, got.Skipped, got.Total)
		}
		if got.PlaylistURL != run.PlaylistURL {
			t.Errorf("expected url %s, got %s", run.PlaylistURL, got.PlaylistURL)
		}
		if got.Duration() != 2*time.Minute {
			t.Errorf("expected 2m duration, got %s", got.Duration())
		}
		if got.Status != models.RunCompleted {
			t.Errorf("expected completed, got %s", got.Status)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Create invalid", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun("", "", "", time.Now())
		if err := repo.Create(run); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun(models.SourceBillboard)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Status = models.RunFailed
		run.Error = "token revoked"
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunFailed || got.Error != "token revoked" {
			t.Errorf("expected failed run with error, got %s %q", got.Status, got.Error)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun(models.SourceBillboard)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("expected error getting deleted run")
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound deleting twice, got %v", err)
		}
		if err := repo.Update(run); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound updating deleted run, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for _, src := range []models.SourceTag{models.SourceBillboard, models.SourceTraxsource, models.SourceBillboard} {
			if err := repo.Create(newTestRun(src)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     int
		}{
			{"all", map[string]any{}, 3},
			{"by source", map[string]any{"source": "billboard"}, 2},
			{"by status", map[string]any{"status": "failed"}, 0},
			{"limited", map[string]any{"limit": 1}, 1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runs, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list runs: %v", err)
				}
				if len(runs) != tt.want {
					t.Errorf("expected %d runs, got %d", tt.want, len(runs))
				}
			})
		}

		runs, err := repo.List(nil)
		if err != nil {
			t.Fatal(err)
		}
		if runs[0].Sequence() != 3 {
			t.Errorf("expected newest run first, got sequence %d", runs[0].Sequence())
		}
	})
}

func TestRunResolutions(t *testing.T) {
	repo := NewRunRepository(setupTestDB(t))
	run := newTestRun(models.SourceTraxsource)
	if err := repo.Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	resolutions := []models.Resolution{
		{Position: 2, RawTitle: "Unknown Song", RawArtist: "Nobody", CleanTitle: "Unknown Song", CleanArtist: "Nobody", Confidence: models.MatchNone, Outcome: models.OutcomeUnresolved},
		{Position: 1, RawTitle: "Beat Of An Era", RawArtist: "Jimpster", CleanTitle: "Beat Of An Era", CleanArtist: "Jimpster", ExternalID: "X", Confidence: models.MatchExact, Outcome: models.OutcomeExact},
	}

	if err := repo.SaveResolutions(run.ID(), resolutions); err != nil {
		t.Fatalf("failed to save resolutions: %v", err)
	}

	got, err := repo.ListResolutions(run.ID())
	if err != nil {
		t.Fatalf("failed to list resolutions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(got))
	}
	if got[0].Position != 1 || got[0].Confidence != models.MatchExact || got[0].ExternalID != "X" {
		t.Errorf("expected position 1 EXACT X first, got %+v", got[0])
	}
	if got[1].Outcome != models.OutcomeUnresolved {
		t.Errorf("expected UNRESOLVED, got %s", got[1].Outcome)
	}

	t.Run("unknown run violates foreign key", func(t *testing.T) {
		if err := repo.SaveResolutions("missing", resolutions); err == nil {
			t.Error("expected foreign key error")
		}
	})
}

func TestResolutionCache(t *testing.T) {
	t.Run("miss", func(t *testing.T) {
		cache := NewResolutionCache(setupTestDB(t))
		id, ok, err := cache.Lookup("song|artist")
		if err != nil || ok || id != "" {
			t.Errorf("expected miss, got %q %v %v", id, ok, err)
		}
	})

	t.Run("store and hit", func(t *testing.T) {
		cache := NewResolutionCache(setupTestDB(t))
		if err := cache.Store("song|artist", models.MatchCandidate{ExternalID: "X", Title: "Song", Artist: "Artist"}); err != nil {
			t.Fatalf("failed to store: %v", err)
		}

		for range 2 {
			id, ok, err := cache.Lookup("song|artist")
			if err != nil || !ok || id != "X" {
				t.Fatalf("expected hit X, got %q %v %v", id, ok, err)
			}
		}

		hits, err := cache.Hits("song|artist")
		if err != nil {
			t.Fatal(err)
		}
		if hits != 2 {
			t.Errorf("expected 2 hits, got %d", hits)
		}
	})

	t.Run("store replaces", func(t *testing.T) {
		cache := NewResolutionCache(setupTestDB(t))
		_ = cache.Store("k", models.MatchCandidate{ExternalID: "old"})
		if err := cache.Store("k", models.MatchCandidate{ExternalID: "new"}); err != nil {
			t.Fatalf("failed to replace: %v", err)
		}
		id, _, _ := cache.Lookup("k")
		if id != "new" {
			t.Errorf("expected new, got %q", id)
		}
	})

	t.Run("store requires key and id", func(t *testing.T) {
		cache := NewResolutionCache(setupTestDB(t))
		if err := cache.Store("", models.MatchCandidate{ExternalID: "X"}); err == nil {
			t.Error("expected error for empty key")
		}
		if err := cache.Store("k", models.MatchCandidate{}); err == nil {
			t.Error("expected error for empty id")
		}
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewResolutionCache(setupTestDB(t))
		_ = cache.Store("a", models.MatchCandidate{ExternalID: "1"})
		_ = cache.Store("b", models.MatchCandidate{ExternalID: "2"})

		n, err := cache.Clear()
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("expected 2 removed, got %d", n)
		}
	})

	t.Run("closed database", func(t *testing.T) {
		db := setupTestDB(t)
		cache := NewResolutionCache(db)
		db.Close()

		if _, _, err := cache.Lookup("k"); err == nil {
			t.Error("expected error on closed database")
		}
		if err := cache.Store("k", models.MatchCandidate{ExternalID: "X"}); err == nil {
			t.Error("expected error on closed database")
		}
	})
}
