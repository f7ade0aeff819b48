package ledger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM scenes`).Scan(&count); err != nil {
		t.Fatalf("scenes table missing: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)
	run, err := db.StartRun(2013, landsat.ForYear(2013))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run id is empty")
	}
	if err := db.FinishRun(run.ID, 4, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != run.ID || got.Year != 2013 || got.Sensor != "C" || got.Version != 8 {
		t.Errorf("run = %+v", got)
	}
	if got.Scenes != 4 || got.Failed != 1 {
		t.Errorf("totals = %d/%d, want 4/1", got.Scenes, got.Failed)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not set")
	}
}

func TestFinishRun_Unknown(t *testing.T) {
	db := testDB(t)
	if err := db.FinishRun("missing", 0, 0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := testDB(t)
	first, _ := db.StartRun(1985, landsat.ForYear(1985))
	second, _ := db.StartRun(1986, landsat.ForYear(1986))

	runs, err := db.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second.ID {
		t.Errorf("runs = %+v, want only %s", runs, second.ID)
	}

	all, _ := db.ListRuns(0)
	if len(all) != 2 || all[1].ID != first.ID {
		t.Errorf("all runs = %+v, want %s last", all, first.ID)
	}
}

func TestUpsertScene_KeepsDigest(t *testing.T) {
	db := testDB(t)
	const id = "LC81910562013110LGN01"
	if err := db.UpsertScene(models.SceneRecord{SceneID: id, Year: 2013, Status: models.StatusDownloaded, ArchiveSHA256: "abc"}); err != nil {
		t.Fatalf("UpsertScene: %v", err)
	}
	if err := db.UpsertScene(models.SceneRecord{SceneID: id, Year: 2013, Status: models.StatusComposited}); err != nil {
		t.Fatalf("UpsertScene: %v", err)
	}

	rec, err := db.GetScene(id)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if rec.Status != models.StatusComposited {
		t.Errorf("status = %q, want %q", rec.Status, models.StatusComposited)
	}
	if rec.ArchiveSHA256 != "abc" {
		t.Errorf("sha = %q, want %q", rec.ArchiveSHA256, "abc")
	}
}

func TestSetStatus_KeepsLastError(t *testing.T) {
	db := testDB(t)
	const id = "LC81910562013110LGN01"
	_ = db.UpsertScene(models.SceneRecord{SceneID: id, Year: 2013, Status: models.StatusExtracted, LastError: "gdalwarp failed"})
	if err := db.SetStatus(id, 2013, models.StatusProjected); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	rec, _ := db.GetScene(id)
	if rec.Status != models.StatusProjected || rec.LastError != "gdalwarp failed" {
		t.Errorf("rec = %+v", rec)
	}
}

func TestGetScene_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetScene("LC81910562013110LGN01"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListScenes_ByYear(t *testing.T) {
	db := testDB(t)
	_ = db.SetStatus("LC81910562013120LGN01", 2013, models.StatusPending)
	_ = db.SetStatus("LC81910562013110LGN01", 2013, models.StatusComposited)
	_ = db.SetStatus("LC81910562014110LGN01", 2014, models.StatusPending)

	recs, err := db.ListScenes(2013)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("scenes = %d, want 2", len(recs))
	}
	if recs[0].SceneID != "LC81910562013110LGN01" {
		t.Errorf("first = %q, want ordered by id", recs[0].SceneID)
	}
}
