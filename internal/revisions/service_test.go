package revisions

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListingRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{
		Title:        "Profitable SaaS Business",
		Description:  "Recurring revenue, low churn.",
		BusinessType: "SaaS",
		Geography:    "Western Europe",
		AskingPrice:  50000000,
		TTMRevenue:   20000000,
		TTMProfit:    8000000,
	}

	if err := svc.EnsureListingRepo("lst_1", initial, "Sam Seller"); err != nil {
		t.Fatalf("EnsureListingRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "lst_1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	updated := initial
	updated.AskingPrice = 55000000
	commit, err := svc.Commit("lst_1", updated, "Sam Seller", "Raise asking price")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("lst_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Message != "Raise asking price" {
		t.Fatalf("unexpected newest message: %q", history[0].Message)
	}

	got, err := svc.GetSnapshotByHash("lst_1", commit.Hash)
	if err != nil {
		t.Fatalf("GetSnapshotByHash() error = %v", err)
	}
	if got.AskingPrice != 55000000 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	if _, err := svc.Commit("lst_1", updated, "Sam Seller", "No-op"); err != ErrNoChanges {
		t.Fatalf("expected ErrNoChanges for unchanged snapshot, got %v", err)
	}
}

func TestEnsureListingRepoIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{Title: "Listing"}
	if err := svc.EnsureListingRepo("lst_2", initial, "Sam"); err != nil {
		t.Fatalf("first EnsureListingRepo() error = %v", err)
	}
	if err := svc.EnsureListingRepo("lst_2", Snapshot{Title: "Other"}, "Sam"); err != nil {
		t.Fatalf("second EnsureListingRepo() error = %v", err)
	}

	history, err := svc.History("lst_2", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected a single baseline commit, got %d", len(history))
	}
}

func TestDiffFields(t *testing.T) {
	from := Snapshot{Title: "Old", AskingPrice: 100, Geography: "EU"}
	to := Snapshot{Title: "New", AskingPrice: 200, Geography: "EU"}

	diff := DiffFields(from, to)
	if len(diff) != 2 {
		t.Fatalf("expected 2 changed fields, got %d: %v", len(diff), diff)
	}
	// sorted by field name
	if diff[0]["field"] != "askingPrice" || diff[1]["field"] != "title" {
		t.Fatalf("unexpected diff order: %v", diff)
	}
	if diff[1]["before"] != "Old" || diff[1]["after"] != "New" {
		t.Fatalf("unexpected title diff: %v", diff[1])
	}

	if !HasChanges(from, to) {
		t.Error("expected HasChanges to be true")
	}
	if HasChanges(from, from) {
		t.Error("expected HasChanges to be false for identical snapshots")
	}
}
