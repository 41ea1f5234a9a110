package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yuqie6/ecopulse/internal/repository"
	"github.com/yuqie6/ecopulse/internal/schema"
	"github.com/yuqie6/ecopulse/internal/testutil"
)

func newTestImporter(t *testing.T) (*Importer, *repository.CommuteLogRepository, *repository.CommunityRepository) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	store := repository.NewDocumentStore(db)
	logs := repository.NewCommuteLogRepository(store)
	community := repository.NewCommunityRepository(store)

	im := NewImporter(logs, community, nil)
	im.SetNowFunc(func() time.Time {
		return time.Date(2026, 8, 27, 12, 0, 0, 0, time.Local)
	})
	return im, logs, community
}

func bundleLog(id string, co2 float64) schema.CommuteLog {
	created := time.Date(2026, 8, 27, 8, 0, 0, 0, time.Local)
	return schema.CommuteLog{
		ID:        id,
		UserID:    "u1",
		Modes:     []string{schema.ModeCycling},
		CO2Saved:  co2,
		Date:      "2026-08-27",
		CreatedAt: created.UnixMilli(),
	}
}

func TestMergeAddsNewLogsAndUpdatesCommunity(t *testing.T) {
	im, logs, community := newTestImporter(t)
	ctx := context.Background()

	added, err := im.Merge(ctx, []schema.CommuteLog{bundleLog("a", 2.0), bundleLog("b", 3.0)})
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if added != 2 {
		t.Fatalf("added=%d, want 2", added)
	}
	if got := logs.List(ctx); len(got) != 2 {
		t.Fatalf("logs=%d, want 2", len(got))
	}

	stats := community.Get(ctx)
	if stats.TotalCO2Saved != 5.0 || stats.TotalCommutes != 2 {
		t.Fatalf("stats=%+v, want co2 5.0 commutes 2", stats)
	}
}

func TestMergeIsIdempotentByID(t *testing.T) {
	im, logs, community := newTestImporter(t)
	ctx := context.Background()

	if _, err := im.Merge(ctx, []schema.CommuteLog{bundleLog("a", 2.0)}); err != nil {
		t.Fatalf("first Merge error: %v", err)
	}
	added, err := im.Merge(ctx, []schema.CommuteLog{bundleLog("a", 2.0)})
	if err != nil {
		t.Fatalf("second Merge error: %v", err)
	}
	if added != 0 {
		t.Fatalf("added=%d, want 0 on repeat import", added)
	}
	if got := logs.List(ctx); len(got) != 1 {
		t.Fatalf("logs=%d, want 1", len(got))
	}
	if stats := community.Get(ctx); stats.TotalCO2Saved != 2.0 || stats.TotalCommutes != 1 {
		t.Fatalf("stats=%+v, repeat import must not double-count", stats)
	}
}

func TestMergeKeepsLogsSortedByDateDesc(t *testing.T) {
	im, logs, _ := newTestImporter(t)
	ctx := context.Background()

	local := bundleLog("local", 2.0)
	local.Date = "2026-08-27"
	if _, err := im.Merge(ctx, []schema.CommuteLog{local}); err != nil {
		t.Fatalf("seed Merge error: %v", err)
	}

	older := bundleLog("older", 1.0)
	older.Date = "2026-08-20"
	newer := bundleLog("newer", 3.0)
	newer.Date = "2026-08-30"
	if _, err := im.Merge(ctx, []schema.CommuteLog{older, newer}); err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	got := logs.List(ctx)
	want := []string{"newer", "local", "older"}
	if len(got) != len(want) {
		t.Fatalf("logs=%d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("logs[%d]=%s, want %s (date desc)", i, got[i].ID, id)
		}
	}
}

func TestMergeSkipsInvalidRecords(t *testing.T) {
	im, logs, _ := newTestImporter(t)
	ctx := context.Background()

	bad := []schema.CommuteLog{
		{ID: "", UserID: "u1", Modes: []string{schema.ModeWalking}},
		{ID: "x", UserID: "", Modes: []string{schema.ModeWalking}},
		{ID: "y", UserID: "u1", Modes: nil},
		{ID: "z", UserID: "u1", Modes: []string{schema.ModeWalking}, CO2Saved: -1},
	}
	added, err := im.Merge(ctx, bad)
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if added != 0 || len(logs.List(ctx)) != 0 {
		t.Fatalf("invalid records must be skipped, added=%d", added)
	}
}

func TestImportFile(t *testing.T) {
	im, logs, _ := newTestImporter(t)
	ctx := context.Background()

	bundle := Bundle{
		Version:    1,
		ExportedAt: time.Now().UnixMilli(),
		Logs:       []schema.CommuteLog{bundleLog("a", 1.5)},
	}
	b, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}

	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}

	added, err := im.ImportFile(ctx, path)
	if err != nil {
		t.Fatalf("ImportFile error: %v", err)
	}
	if added != 1 || len(logs.List(ctx)) != 1 {
		t.Fatalf("added=%d logs=%d, want 1/1", added, len(logs.List(ctx)))
	}
}

func TestImportFileRejectsMalformedJSON(t *testing.T) {
	im, _, _ := newTestImporter(t)

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := im.ImportFile(context.Background(), path); err == nil {
		t.Fatalf("malformed bundle must fail")
	}
}
