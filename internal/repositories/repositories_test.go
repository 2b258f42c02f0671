package repositories

import (
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	t.Run("counters are per table", func(t *testing.T) {
		got, err := NextSequence(db, "other")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != 1 {
			t.Errorf("expected 1, got %d", got)
		}
	})
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewBuildRun("mine", true, false, true, false)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" || run.Sequence() != 1 {
			t.Errorf("expected id and sequence to be set, got %q #%d", run.ID(), run.Sequence())
		}
	})

	t.Run("Create rejects invalid runs", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if err := repo.Create(models.NewBuildRun("", false, false, false, false)); err == nil {
			t.Fatal("expected validation error for empty playlist name")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewBuildRun("mine", true, true, false, true)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.PlaylistName() != "mine" || !got.Chronological() || !got.SinglesOnly() || got.Public() || !got.DryRun() {
			t.Errorf("unexpected run %+v", got)
		}
		if got.Status() != models.RunRunning || got.FinishedAt() != nil {
			t.Errorf("expected running run, got %s", got.Status())
		}
		if got.CreatedAt().IsZero() {
			t.Error("expected created_at to round-trip")
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if _, err := repo.GetBySequence(7); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update records the outcome", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewBuildRun("mine", false, false, false, false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.SetArtistCount(3)
		run.Succeed("pl1", 120)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.GetBySequence(run.Sequence())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunSucceeded || got.PlaylistID() != "pl1" || got.TrackCount() != 120 || got.ArtistCount() != 3 {
			t.Errorf("unexpected run %+v", got)
		}
		if got.FinishedAt() == nil {
			t.Error("expected finished_at to be set")
		}
	})

	t.Run("Update keeps failure messages", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewBuildRun("mine", false, false, false, false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Fail(shared.ErrAuthRequired)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, _ := repo.Get(run.ID())
		if got.Status() != models.RunFailed || got.ErrorMessage() != shared.ErrAuthRequired.Error() {
			t.Errorf("unexpected run %s %q", got.Status(), got.ErrorMessage())
		}
	})

	t.Run("Update missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewBuildRun("mine", false, false, false, false)
		run.SetID("nope")
		if err := repo.Update(run); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Delete hides the run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewBuildRun("mine", false, false, false, false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected deleted run to be hidden, got %v", err)
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected second delete to fail, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for i, name := range []string{"first", "second", "third"} {
			run := models.NewBuildRun(name, false, false, false, false)
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
			if i == 1 {
				run.Fail(errors.New("boom"))
				if err := repo.Update(run); err != nil {
					t.Fatalf("failed to update run: %v", err)
				}
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].PlaylistName() != "third" {
			t.Errorf("expected newest first, got %d runs", len(all))
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}

		failed, _ := repo.List(map[string]any{"status": models.RunFailed})
		if len(failed) != 1 || failed[0].PlaylistName() != "second" {
			t.Errorf("unexpected failed runs %v", failed)
		}

		running, _ := repo.List(map[string]any{"status": "running"})
		if len(running) != 2 {
			t.Errorf("expected 2 running runs, got %d", len(running))
		}
	})

	t.Run("List empty", func(t *testing.T) {
		runs, err := NewRunRepository(setupTestDB(t)).List(nil)
		if err != nil || runs == nil || len(runs) != 0 {
			t.Errorf("expected empty list, got %v, %v", runs, err)
		}
	})
}

func TestTrackCountRepository(t *testing.T) {
	t.Run("Put and Get", func(t *testing.T) {
		repo := NewTrackCountRepository(setupTestDB(t))

		if err := repo.Put(models.TrackCount{ArtistID: "a1", ArtistName: "One", Count: 12}); err != nil {
			t.Fatalf("failed to put count: %v", err)
		}

		tc, ok, err := repo.Get("a1", false)
		if err != nil || !ok {
			t.Fatalf("expected stored count, got ok=%v err=%v", ok, err)
		}
		if tc.Count != 12 || tc.ArtistName != "One" || tc.UpdatedAt.IsZero() {
			t.Errorf("unexpected count %+v", tc)
		}

		if _, ok, _ := repo.Get("a1", true); ok {
			t.Error("expected singles filter to be a separate key")
		}
	})

	t.Run("Put replaces", func(t *testing.T) {
		repo := NewTrackCountRepository(setupTestDB(t))
		repo.Put(models.TrackCount{ArtistID: "a1", ArtistName: "One", Count: 12})
		repo.Put(models.TrackCount{ArtistID: "a1", ArtistName: "One!", Count: 15})

		tc, _, _ := repo.Get("a1", false)
		if tc.Count != 15 || tc.ArtistName != "One!" {
			t.Errorf("expected replaced count, got %+v", tc)
		}
	})

	t.Run("Put validates", func(t *testing.T) {
		repo := NewTrackCountRepository(setupTestDB(t))
		if err := repo.Put(models.TrackCount{Count: 1}); err == nil {
			t.Error("expected error for missing artist id")
		}
		if err := repo.Put(models.TrackCount{ArtistID: "a", Count: -1}); err == nil {
			t.Error("expected error for negative count")
		}
	})

	t.Run("List and Clear", func(t *testing.T) {
		repo := NewTrackCountRepository(setupTestDB(t))
		repo.Put(models.TrackCount{ArtistID: "a1", ArtistName: "One", Count: 5})
		repo.Put(models.TrackCount{ArtistID: "a2", ArtistName: "Two", Count: 9})
		repo.Put(models.TrackCount{ArtistID: "a1", ArtistName: "One", SinglesOnly: true, Count: 2})

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list counts: %v", err)
		}
		if len(all) != 3 || all[0].ArtistID != "a2" {
			t.Errorf("expected largest first, got %+v", all)
		}

		singles, _ := repo.List(map[string]any{"singles_only": true})
		if len(singles) != 1 || singles[0].Count != 2 {
			t.Errorf("unexpected singles counts %+v", singles)
		}

		n, err := repo.Clear()
		if err != nil || n != 3 {
			t.Errorf("expected 3 cleared, got %d, %v", n, err)
		}
		if left, _ := repo.List(nil); len(left) != 0 {
			t.Errorf("expected empty cache, got %d", len(left))
		}
	})
}

func TestCountCacheAdapter(t *testing.T) {
	repo := NewTrackCountRepository(setupTestDB(t))
	cache := NewCountCacheAdapter(repo, time.Hour, shared.NewLogger(io.Discard))
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if _, ok := cache.GetCount("a1", false); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	if err := cache.PutCount(models.Artist{ID: "a1", Name: "One"}, false, 7); err != nil {
		t.Fatalf("failed to put count: %v", err)
	}
	if n, ok := cache.GetCount("a1", false); !ok || n != 7 {
		t.Errorf("expected 7, got %d (ok=%v)", n, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := cache.GetCount("a1", false); ok {
		t.Error("expected expired entry to miss")
	}

	t.Run("zero max age never expires", func(t *testing.T) {
		forever := NewCountCacheAdapter(repo, 0, nil)
		forever.now = func() time.Time { return now.Add(24 * 365 * time.Hour) }
		if _, ok := forever.GetCount("a1", false); !ok {
			t.Error("expected entry to be kept")
		}
	})
}
