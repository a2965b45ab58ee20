package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const loiColumns = `
	id, listing_id, buyer_id, seller_id, status,
	offer_price, cash_amount, earnout_amount, due_diligence_days, exclusivity_days,
	expiration_date, conditions, COALESCE(response_notes, ''),
	sent_at, responded_at, created_at, updated_at
`

func scanLOI(row interface{ Scan(...any) error }) (LOIOffer, error) {
	var item LOIOffer
	var conditions []byte
	err := row.Scan(
		&item.ID,
		&item.ListingID,
		&item.BuyerID,
		&item.SellerID,
		&item.Status,
		&item.OfferPrice,
		&item.CashAmount,
		&item.EarnoutAmount,
		&item.DueDiligenceDays,
		&item.ExclusivityDays,
		&item.ExpirationDate,
		&conditions,
		&item.ResponseNotes,
		&item.SentAt,
		&item.RespondedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return LOIOffer{}, err
	}
	item.Conditions = decodeStrings(conditions)
	return item, nil
}

func (s *PostgresStore) InsertLOI(ctx context.Context, offer LOIOffer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loi_offers (id, listing_id, buyer_id, seller_id, status, offer_price, cash_amount, earnout_amount, due_diligence_days, exclusivity_days, expiration_date, conditions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
	`, offer.ID, offer.ListingID, offer.BuyerID, offer.SellerID, offer.Status,
		offer.OfferPrice, offer.CashAmount, offer.EarnoutAmount, offer.DueDiligenceDays, offer.ExclusivityDays,
		offer.ExpirationDate, encodeStrings(offer.Conditions))
	if err != nil {
		return fmt.Errorf("insert loi: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLOI(ctx context.Context, loiID string) (LOIOffer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loiColumns+` FROM loi_offers WHERE id=$1`, loiID)
	return scanLOI(row)
}

func (s *PostgresStore) ListLOIsForUser(ctx context.Context, userID string) ([]LOIOffer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loiColumns+` FROM loi_offers
		WHERE buyer_id=$1 OR seller_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list lois: %w", err)
	}
	defer rows.Close()

	items := make([]LOIOffer, 0)
	for rows.Next() {
		item, err := scanLOI(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loi: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lois: %w", err)
	}
	return items, nil
}

// UpdateLOITerms rewrites the editable terms of a draft offer. The status
// and party guards live in the statement so a concurrent send or response
// cannot interleave with the edit.
func (s *PostgresStore) UpdateLOITerms(ctx context.Context, offer LOIOffer) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loi_offers
		SET offer_price=$3, cash_amount=$4, earnout_amount=$5,
			due_diligence_days=$6, exclusivity_days=$7, expiration_date=$8,
			conditions=$9::jsonb, updated_at=NOW()
		WHERE id=$1 AND buyer_id=$2 AND status='draft'
	`, offer.ID, offer.BuyerID, offer.OfferPrice, offer.CashAmount, offer.EarnoutAmount,
		offer.DueDiligenceDays, offer.ExclusivityDays, offer.ExpirationDate, encodeStrings(offer.Conditions))
	if err != nil {
		return false, fmt.Errorf("update loi terms: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update loi terms rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkLOISent(ctx context.Context, loiID, buyerID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loi_offers SET status='sent', sent_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND buyer_id=$2 AND status='draft'
	`, loiID, buyerID)
	if err != nil {
		return false, fmt.Errorf("mark loi sent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark loi sent rows: %w", err)
	}
	return affected > 0, nil
}

// RespondLOI moves a sent offer to accepted or rejected. The expiration
// check is part of the guard: an offer past its expiration date cannot be
// answered even if it still reads 'sent' on disk.
func (s *PostgresStore) RespondLOI(ctx context.Context, loiID, sellerID, status, notes string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loi_offers
		SET status=$3, response_notes=NULLIF($4, ''), responded_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND seller_id=$2 AND status='sent' AND expiration_date > NOW()
	`, loiID, sellerID, status, notes)
	if err != nil {
		return false, fmt.Errorf("respond loi: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("respond loi rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteLOI(ctx context.Context, loiID, buyerID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM loi_offers WHERE id=$1 AND buyer_id=$2 AND status='draft'
	`, loiID, buyerID)
	if err != nil {
		return false, fmt.Errorf("delete loi: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete loi rows: %w", err)
	}
	return affected > 0, nil
}

// ── Escrow ──

const escrowColumns = `
	id, loi_id, listing_id, buyer_id, seller_id, status,
	escrow_amount, platform_fee_percent, platform_fee_amount, buyer_total_amount, seller_net_amount,
	COALESCE(provider, ''), COALESCE(reference_id, ''),
	funded_at, released_at, created_at, updated_at
`

func scanEscrow(row interface{ Scan(...any) error }) (EscrowTransaction, error) {
	var item EscrowTransaction
	err := row.Scan(
		&item.ID,
		&item.LOIID,
		&item.ListingID,
		&item.BuyerID,
		&item.SellerID,
		&item.Status,
		&item.EscrowAmount,
		&item.PlatformFeePercent,
		&item.PlatformFeeAmount,
		&item.BuyerTotalAmount,
		&item.SellerNetAmount,
		&item.Provider,
		&item.ReferenceID,
		&item.FundedAt,
		&item.ReleasedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertEscrow(ctx context.Context, escrow EscrowTransaction) error {
	var loiID any
	if escrow.LOIID != nil {
		loiID = *escrow.LOIID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escrow_transactions (id, loi_id, listing_id, buyer_id, seller_id, status, escrow_amount, platform_fee_percent, platform_fee_amount, buyer_total_amount, seller_net_amount, provider, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''))
	`, escrow.ID, loiID, escrow.ListingID, escrow.BuyerID, escrow.SellerID, escrow.Status,
		escrow.EscrowAmount, escrow.PlatformFeePercent, escrow.PlatformFeeAmount, escrow.BuyerTotalAmount, escrow.SellerNetAmount,
		escrow.Provider, escrow.ReferenceID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEscrow(ctx context.Context, escrowID string) (EscrowTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+escrowColumns+` FROM escrow_transactions WHERE id=$1`, escrowID)
	return scanEscrow(row)
}

func (s *PostgresStore) GetEscrowByLOI(ctx context.Context, loiID string) (EscrowTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+escrowColumns+` FROM escrow_transactions WHERE loi_id=$1`, loiID)
	return scanEscrow(row)
}

func (s *PostgresStore) ListEscrowsForUser(ctx context.Context, userID string) ([]EscrowTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+escrowColumns+` FROM escrow_transactions
		WHERE buyer_id=$1 OR seller_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	items := make([]EscrowTransaction, 0)
	for rows.Next() {
		item, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escrow: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkEscrowFunded(ctx context.Context, escrowID, provider, referenceID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE escrow_transactions
		SET status='funded', provider=COALESCE(NULLIF($2, ''), provider), reference_id=COALESCE(NULLIF($3, ''), reference_id), funded_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='initiated'
	`, escrowID, provider, referenceID)
	if err != nil {
		return false, fmt.Errorf("mark escrow funded: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark escrow funded rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkEscrowReleased(ctx context.Context, escrowID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE escrow_transactions SET status='released', released_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='complete'
	`, escrowID)
	if err != nil {
		return false, fmt.Errorf("mark escrow released: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark escrow released rows: %w", err)
	}
	return affected > 0, nil
}

// ── Migration checklists ──

// CreateChecklistWithTasks inserts the checklist and its default task set in
// one transaction, moving the escrow into migration as part of the same
// commit. A second checklist for the same escrow fails with ErrDuplicate.
func (s *PostgresStore) CreateChecklistWithTasks(ctx context.Context, checklist MigrationChecklist, tasks []MigrationTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checklist tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO migration_checklists (id, escrow_id, status)
		VALUES ($1, $2, $3)
	`, checklist.ID, checklist.EscrowID, checklist.Status); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert checklist: %w", err)
	}

	for _, task := range tasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO migration_tasks (id, checklist_id, task_category, title, status)
			VALUES ($1, $2, $3, $4, $5)
		`, task.ID, task.ChecklistID, task.Category, task.Title, task.Status); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE escrow_transactions SET status='in_migration', updated_at=NOW()
		WHERE id=$1 AND status='funded'
	`, checklist.EscrowID); err != nil {
		return fmt.Errorf("advance escrow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checklist tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChecklistByEscrow(ctx context.Context, escrowID string) (MigrationChecklist, error) {
	var item MigrationChecklist
	err := s.db.QueryRowContext(ctx, `
		SELECT id, escrow_id, status, completed_at, created_at
		FROM migration_checklists
		WHERE escrow_id=$1
	`, escrowID).Scan(&item.ID, &item.EscrowID, &item.Status, &item.CompletedAt, &item.CreatedAt)
	if err != nil {
		return MigrationChecklist{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, checklistID string) ([]MigrationTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checklist_id, task_category, title, status, buyer_confirmed, seller_confirmed, completed_at, created_at, updated_at
		FROM migration_tasks
		WHERE checklist_id=$1
		ORDER BY created_at ASC, id ASC
	`, checklistID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]MigrationTask, 0)
	for rows.Next() {
		var item MigrationTask
		if err := rows.Scan(
			&item.ID,
			&item.ChecklistID,
			&item.Category,
			&item.Title,
			&item.Status,
			&item.BuyerConfirmed,
			&item.SellerConfirmed,
			&item.CompletedAt,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTaskContext(ctx context.Context, taskID string) (TaskContext, error) {
	var tc TaskContext
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.checklist_id, t.task_category, t.title, t.status, t.buyer_confirmed, t.seller_confirmed, t.completed_at, t.created_at, t.updated_at,
			c.id, e.id, e.buyer_id, e.seller_id
		FROM migration_tasks t
		JOIN migration_checklists c ON c.id = t.checklist_id
		JOIN escrow_transactions e ON e.id = c.escrow_id
		WHERE t.id=$1
	`, taskID).Scan(
		&tc.Task.ID,
		&tc.Task.ChecklistID,
		&tc.Task.Category,
		&tc.Task.Title,
		&tc.Task.Status,
		&tc.Task.BuyerConfirmed,
		&tc.Task.SellerConfirmed,
		&tc.Task.CompletedAt,
		&tc.Task.CreatedAt,
		&tc.Task.UpdatedAt,
		&tc.ChecklistID,
		&tc.EscrowID,
		&tc.BuyerID,
		&tc.SellerID,
	)
	if err != nil {
		return TaskContext{}, err
	}
	return tc, nil
}

// UpdateTaskStatus sets a non-terminal task's status. completed_at is
// derived in the statement: present only when the task lands complete with
// both confirmations already in place.
func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE migration_tasks
		SET status=$2,
			completed_at=CASE WHEN $2='complete' AND buyer_confirmed AND seller_confirmed THEN NOW() ELSE NULL END,
			updated_at=NOW()
		WHERE id=$1 AND status <> 'complete'
	`, taskID, status)
	if err != nil {
		return false, fmt.Errorf("update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task status rows: %w", err)
	}
	return affected > 0, nil
}

// ConfirmTask records one party's confirmation. When the second confirmation
// arrives the task completes, and if that was the last open task the
// checklist and its escrow advance in the same transaction.
func (s *PostgresStore) ConfirmTask(ctx context.Context, taskID string, asBuyer bool) (MigrationTask, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MigrationTask{}, false, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	buyerConfirm := asBuyer
	sellerConfirm := !asBuyer

	var task MigrationTask
	err = tx.QueryRowContext(ctx, `
		UPDATE migration_tasks
		SET buyer_confirmed = buyer_confirmed OR $2,
			seller_confirmed = seller_confirmed OR $3,
			status = CASE
				WHEN (buyer_confirmed OR $2) AND (seller_confirmed OR $3) THEN 'complete'
				WHEN status='pending' THEN 'in_progress'
				ELSE status
			END,
			completed_at = CASE WHEN (buyer_confirmed OR $2) AND (seller_confirmed OR $3) THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id=$1 AND status <> 'complete'
		RETURNING id, checklist_id, task_category, title, status, buyer_confirmed, seller_confirmed, completed_at, created_at, updated_at
	`, taskID, buyerConfirm, sellerConfirm).Scan(
		&task.ID,
		&task.ChecklistID,
		&task.Category,
		&task.Title,
		&task.Status,
		&task.BuyerConfirmed,
		&task.SellerConfirmed,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return MigrationTask{}, false, sql.ErrNoRows
	}
	if err != nil {
		return MigrationTask{}, false, fmt.Errorf("confirm task: %w", err)
	}

	checklistCompleted := false
	if task.Status == "complete" {
		result, err := tx.ExecContext(ctx, `
			UPDATE migration_checklists
			SET status='complete', completed_at=NOW()
			WHERE id=$1 AND status='in_progress'
			  AND NOT EXISTS (SELECT 1 FROM migration_tasks WHERE checklist_id=$1 AND status <> 'complete')
		`, task.ChecklistID)
		if err != nil {
			return MigrationTask{}, false, fmt.Errorf("complete checklist: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return MigrationTask{}, false, fmt.Errorf("complete checklist rows: %w", err)
		}
		if affected > 0 {
			checklistCompleted = true
			if _, err := tx.ExecContext(ctx, `
				UPDATE escrow_transactions SET status='complete', updated_at=NOW()
				WHERE id=(SELECT escrow_id FROM migration_checklists WHERE id=$1) AND status='in_migration'
			`, task.ChecklistID); err != nil {
				return MigrationTask{}, false, fmt.Errorf("complete escrow: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return MigrationTask{}, false, fmt.Errorf("commit confirm tx: %w", err)
	}
	return task, checklistCompleted, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM migration_tasks WHERE id=$1 AND status <> 'complete'
	`, taskID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task rows: %w", err)
	}
	return affected > 0, nil
}
