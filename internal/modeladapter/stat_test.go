package modeladapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
)

func TestEWMABackend_FitAndScore(t *testing.T) {
	b := NewEWMABackend(0.2)
	ctx := context.Background()

	if err := b.Fit(ctx, []float64{10, 10, 10, 10, 10, 10, 10, 10}, false, ""); err != nil {
		t.Fatalf("fit: %v", err)
	}

	scores, err := b.Score(ctx, []float64{10, 50})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scores[0] >= scores[1] {
		t.Fatalf("expected the outlier to score higher, got %v", scores)
	}
}

func TestEWMABackend_ScoreBeforeFit(t *testing.T) {
	b := NewEWMABackend(0.2)
	_, err := b.Score(context.Background(), []float64{1})
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Fatalf("expected invalid-argument scoring an unfitted model, got %v", err)
	}
}

func TestEWMABackend_FitEmptyData(t *testing.T) {
	b := NewEWMABackend(0.2)
	err := b.Fit(context.Background(), nil, false, "")
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Fatalf("expected invalid-argument fitting with no data, got %v", err)
	}
}

func TestEWMABackend_AutosavePersists(t *testing.T) {
	b := NewEWMABackend(0.2)
	path := filepath.Join(t.TempDir(), "model.json")

	if err := b.Fit(context.Background(), []float64{1, 2, 3}, true, path); err != nil {
		t.Fatalf("fit with autosave: %v", err)
	}

	restored := NewEWMABackend(0.2)
	if err := restored.LoadFrom(path); err != nil {
		t.Fatalf("load_from after autosave: %v", err)
	}
	if !restored.Status().Fitted {
		t.Fatal("expected restored model to report fitted")
	}
}

func TestEWMABackend_AutosaveFailureFailsFit(t *testing.T) {
	b := NewEWMABackend(0.2)
	// A path under a nonexistent directory can never be written; autosave
	// must make Fit itself fail rather than silently skipping persistence.
	badPath := filepath.Join(t.TempDir(), "missing-dir", "model.json")

	err := b.Fit(context.Background(), []float64{1, 2, 3}, true, badPath)
	if err == nil {
		t.Fatal("expected fit to fail when autosave cannot persist")
	}
}

func TestEWMABackend_LoadFromMissingFile(t *testing.T) {
	b := NewEWMABackend(0.2)
	err := b.LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not-found loading a missing model, got %v", err)
	}
}

func TestEWMABackend_SaveIsAtomic(t *testing.T) {
	b := NewEWMABackend(0.2)
	path := filepath.Join(t.TempDir(), "model.json")

	if err := b.Fit(context.Background(), []float64{5, 6, 7}, false, ""); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := b.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The temp file used during the atomic write must not be left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed after a successful save, stat err: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected final file to exist after save: %v", err)
	}
}

func TestEWMABackend_StatusReflectsFit(t *testing.T) {
	b := NewEWMABackend(0.2)
	if b.Status().Fitted {
		t.Fatal("expected a fresh backend to be unfitted")
	}
	if err := b.Fit(context.Background(), []float64{1}, false, ""); err != nil {
		t.Fatalf("fit: %v", err)
	}
	status := b.Status()
	if !status.Fitted || status.NumSamples != 1 {
		t.Fatalf("expected fitted status with 1 sample, got %+v", status)
	}
}
