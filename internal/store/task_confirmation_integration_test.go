package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// The completed_at rules for migration tasks live in the SQL of
// UpdateTaskStatus and ConfirmTask, so they are exercised against a real
// database: a task carries a completion timestamp only once both parties
// confirmed, and the checklist and escrow advance with the last confirmation.

func TestConfirmTaskSingleSideLeavesTaskOpen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := openTestDB(t, ctx)
	defer db.Close()

	fx := seedMigrationFixture(t, ctx, db, "itc-one", 1)
	defer fx.cleanup()

	task, checklistCompleted, err := fx.store.ConfirmTask(ctx, fx.taskIDs[0], true)
	if err != nil {
		t.Fatalf("confirm task: %v", err)
	}
	if checklistCompleted {
		t.Fatal("checklist must not complete on a single confirmation")
	}
	if task.Status != "in_progress" {
		t.Fatalf("expected in_progress after one confirmation, got %q", task.Status)
	}
	if !task.BuyerConfirmed || task.SellerConfirmed {
		t.Fatalf("expected buyer-only confirmation, got buyer=%v seller=%v", task.BuyerConfirmed, task.SellerConfirmed)
	}
	if task.CompletedAt != nil {
		t.Fatalf("completed_at must stay null until both sides confirm, got %v", task.CompletedAt)
	}
}

func TestConfirmTaskBothSidesCompletesTaskAndAdvances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := openTestDB(t, ctx)
	defer db.Close()

	fx := seedMigrationFixture(t, ctx, db, "itc-both", 2)
	defer fx.cleanup()

	// First task: both confirmations complete the task but not the checklist.
	if _, _, err := fx.store.ConfirmTask(ctx, fx.taskIDs[0], true); err != nil {
		t.Fatalf("buyer confirm: %v", err)
	}
	task, checklistCompleted, err := fx.store.ConfirmTask(ctx, fx.taskIDs[0], false)
	if err != nil {
		t.Fatalf("seller confirm: %v", err)
	}
	if task.Status != "complete" {
		t.Fatalf("expected complete after both confirmations, got %q", task.Status)
	}
	if task.CompletedAt == nil {
		t.Fatal("expected completed_at once both sides confirmed")
	}
	if checklistCompleted {
		t.Fatal("checklist must stay open while another task is pending")
	}
	if got := escrowStatus(t, ctx, db, fx.escrowID); got != "in_migration" {
		t.Fatalf("expected escrow in_migration, got %q", got)
	}

	// Second task: the last confirmation advances checklist and escrow.
	if _, _, err := fx.store.ConfirmTask(ctx, fx.taskIDs[1], false); err != nil {
		t.Fatalf("seller confirm: %v", err)
	}
	_, checklistCompleted, err = fx.store.ConfirmTask(ctx, fx.taskIDs[1], true)
	if err != nil {
		t.Fatalf("buyer confirm: %v", err)
	}
	if !checklistCompleted {
		t.Fatal("expected checklist completion on the last confirmation")
	}

	checklist, err := fx.store.GetChecklistByEscrow(ctx, fx.escrowID)
	if err != nil {
		t.Fatalf("get checklist: %v", err)
	}
	if checklist.Status != "complete" || checklist.CompletedAt == nil {
		t.Fatalf("expected complete checklist with timestamp, got status=%q completedAt=%v", checklist.Status, checklist.CompletedAt)
	}
	if got := escrowStatus(t, ctx, db, fx.escrowID); got != "complete" {
		t.Fatalf("expected escrow complete, got %q", got)
	}
}

func TestUpdateTaskStatusNeverForgesCompletionTimestamp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := openTestDB(t, ctx)
	defer db.Close()

	fx := seedMigrationFixture(t, ctx, db, "itc-status", 1)
	defer fx.cleanup()

	// Forcing the status to complete without confirmations leaves no
	// timestamp behind.
	ok, err := fx.store.UpdateTaskStatus(ctx, fx.taskIDs[0], "complete")
	if err != nil {
		t.Fatalf("update task status: %v", err)
	}
	if !ok {
		t.Fatal("expected open task to accept the update")
	}
	tc, err := fx.store.GetTaskContext(ctx, fx.taskIDs[0])
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tc.Task.CompletedAt != nil {
		t.Fatalf("completed_at must stay null without confirmations, got %v", tc.Task.CompletedAt)
	}

	// Once complete the task is frozen for status edits.
	ok, err = fx.store.UpdateTaskStatus(ctx, fx.taskIDs[0], "pending")
	if err != nil {
		t.Fatalf("update completed task: %v", err)
	}
	if ok {
		t.Fatal("expected completed task to reject further status edits")
	}
}

type migrationFixture struct {
	store    *PostgresStore
	escrowID string
	taskIDs  []string
	cleanup  func()
}

func seedMigrationFixture(t *testing.T, ctx context.Context, db *sql.DB, prefix string, taskCount int) migrationFixture {
	t.Helper()

	buyerID := prefix + "-buyer"
	sellerID := prefix + "-seller"
	listingID := prefix + "-lst"
	escrowID := prefix + "-esc"
	checklistID := prefix + "-chk"

	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}

	// Leftovers from an aborted earlier run would collide on the ids.
	_, _ = db.ExecContext(ctx, `DELETE FROM users WHERE id IN ($1, $2)`, buyerID, sellerID)

	exec(`INSERT INTO users (id, email, password_hash, display_name, role) VALUES ($1, $1 || '@example.com', 'x', 'Fixture Buyer', 'buyer')`, buyerID)
	exec(`INSERT INTO users (id, email, password_hash, display_name, role) VALUES ($1, $1 || '@example.com', 'x', 'Fixture Seller', 'seller')`, sellerID)
	exec(`INSERT INTO listings (id, seller_id, title, status) VALUES ($1, $2, 'Fixture listing', 'approved')`, listingID, sellerID)
	exec(`INSERT INTO escrow_transactions (id, listing_id, buyer_id, seller_id, status) VALUES ($1, $2, $3, $4, 'in_migration')`, escrowID, listingID, buyerID, sellerID)
	exec(`INSERT INTO migration_checklists (id, escrow_id, status) VALUES ($1, $2, 'in_progress')`, checklistID, escrowID)

	taskIDs := make([]string, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		taskID := prefix + "-tsk-" + string(rune('a'+i))
		exec(`INSERT INTO migration_tasks (id, checklist_id, task_category, title, status) VALUES ($1, $2, 'domain', 'Fixture task', 'pending')`, taskID, checklistID)
		taskIDs = append(taskIDs, taskID)
	}

	return migrationFixture{
		store:    NewPostgresStore(db),
		escrowID: escrowID,
		taskIDs:  taskIDs,
		cleanup: func() {
			// Users cascade through listings, escrows, checklists, and tasks.
			_, _ = db.ExecContext(ctx, `DELETE FROM users WHERE id IN ($1, $2)`, buyerID, sellerID)
		},
	}
}

func escrowStatus(t *testing.T, ctx context.Context, db *sql.DB, escrowID string) string {
	t.Helper()
	var status string
	if err := db.QueryRowContext(ctx, `SELECT status FROM escrow_transactions WHERE id=$1`, escrowID).Scan(&status); err != nil {
		t.Fatalf("read escrow status: %v", err)
	}
	return status
}

func openTestDB(t *testing.T, ctx context.Context) *sql.DB {
	t.Helper()

	db, err := Open(ctx, testDatabaseURL())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// testDatabaseURL returns the database URL for integration tests. It checks
// TEST_DATABASE_URL first, then falls back to the standard Postgres
// environment variables.
func testDatabaseURL() string {
	if url := getenv("TEST_DATABASE_URL", ""); url != "" {
		return url
	}

	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	user := getenv("POSTGRES_USER", "connect")
	pass := getenv("POSTGRES_PASSWORD", "connect")
	dbname := getenv("POSTGRES_DB", "connect_capital_test")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + dbname + "?sslmode=disable"
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
