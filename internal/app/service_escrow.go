package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/access"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/util"
)

// defaultPlatformFeePercent applies when the escrow is created without an
// explicit fee.
const defaultPlatformFeePercent = 5.0

type CreateEscrowInput struct {
	LOIID              string  `json:"loiId"`
	ListingID          string  `json:"listingId"`
	BuyerID            string  `json:"buyerId"`
	EscrowAmount       int64   `json:"escrowAmount"`
	PlatformFeePercent float64 `json:"platformFeePercent"`
	Provider           string  `json:"provider"`
	ReferenceID        string  `json:"referenceId"`
}

type FundEscrowInput struct {
	Provider    string `json:"provider"`
	ReferenceID string `json:"referenceId"`
}

type UpdateTaskInput struct {
	Status          *string `json:"status"`
	BuyerConfirmed  *bool   `json:"buyerConfirmed"`
	SellerConfirmed *bool   `json:"sellerConfirmed"`
}

// CreateEscrow opens an escrow transaction, either for an accepted offer or
// directly against an approved listing when the parties agreed on terms
// outside the offer flow. Fee and settlement amounts are derived once at
// creation: the buyer pays the escrow amount plus the platform fee and the
// seller receives the escrow amount in full.
func (s *Service) CreateEscrow(ctx context.Context, session Session, input CreateEscrowInput) (map[string]any, error) {
	feePercent := input.PlatformFeePercent
	if feePercent == 0 {
		feePercent = defaultPlatformFeePercent
	}
	if feePercent < 0 || feePercent > 100 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Platform fee percent must be between 0 and 100", nil)
	}
	if input.EscrowAmount < 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Escrow amount must be positive", nil)
	}

	escrow := store.EscrowTransaction{
		ID:                 util.NewID("esc"),
		Status:             "initiated",
		PlatformFeePercent: feePercent,
		Provider:           input.Provider,
		ReferenceID:        input.ReferenceID,
	}

	switch {
	case input.LOIID != "":
		offer, err := s.store.GetLOI(ctx, input.LOIID)
		if err != nil {
			return nil, err
		}
		if access.ResolveParty(session.UserID, offer.BuyerID, offer.SellerID) == access.PartyNone {
			return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the buyer or seller opens escrow", nil)
		}
		if offer.Status != "accepted" {
			return nil, domainError(http.StatusConflict, "INVALID_ESCROW_STATUS", "Escrow requires an accepted offer", nil)
		}
		loiID := offer.ID
		escrow.LOIID = &loiID
		escrow.ListingID = offer.ListingID
		escrow.BuyerID = offer.BuyerID
		escrow.SellerID = offer.SellerID
		escrow.EscrowAmount = offer.OfferPrice
		if input.EscrowAmount > 0 {
			escrow.EscrowAmount = input.EscrowAmount
		}
	case input.ListingID != "":
		listing, err := s.store.GetListing(ctx, input.ListingID)
		if err != nil {
			return nil, err
		}
		if listing.Status != "approved" {
			return nil, domainError(http.StatusConflict, "LISTING_NOT_APPROVED", "Escrow can only be opened on approved listings", nil)
		}
		if input.EscrowAmount == 0 {
			return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Escrow amount must be positive", nil)
		}
		escrow.ListingID = listing.ID
		escrow.SellerID = listing.SellerID
		escrow.EscrowAmount = input.EscrowAmount
		if session.UserID == listing.SellerID {
			if input.BuyerID == "" || input.BuyerID == listing.SellerID {
				return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "buyerId is required when the seller opens escrow", nil)
			}
			escrow.BuyerID = input.BuyerID
		} else {
			escrow.BuyerID = session.UserID
		}
	default:
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Either loiId or listingId is required", nil)
	}

	escrow.PlatformFeeAmount = int64(math.Round(float64(escrow.EscrowAmount) * feePercent / 100))
	escrow.BuyerTotalAmount = escrow.EscrowAmount + escrow.PlatformFeeAmount
	escrow.SellerNetAmount = escrow.EscrowAmount

	if err := s.store.InsertEscrow(ctx, escrow); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domainError(http.StatusConflict, "ESCROW_ALREADY_EXISTS", "An escrow already exists for this offer", nil)
		}
		return nil, err
	}

	created, err := s.store.GetEscrow(ctx, escrow.ID)
	if err != nil {
		return nil, err
	}
	counterpart := escrow.SellerID
	if session.UserID == escrow.SellerID {
		counterpart = escrow.BuyerID
	}
	s.notify(ctx, counterpart, "escrow_initiated", "Escrow opened",
		fmt.Sprintf("%s opened escrow for %s.", session.UserName, formatCents(escrow.EscrowAmount)), escrow.ID)
	return escrowPayload(created), nil
}

func (s *Service) GetEscrow(ctx context.Context, session Session, escrowID string) (map[string]any, error) {
	escrow, err := s.loadEscrowForParty(ctx, session, escrowID)
	if err != nil {
		return nil, err
	}
	return escrowPayload(escrow), nil
}

func (s *Service) ListEscrows(ctx context.Context, session Session) ([]map[string]any, error) {
	escrows, err := s.store.ListEscrowsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(escrows))
	for _, escrow := range escrows {
		payloads = append(payloads, escrowPayload(escrow))
	}
	return payloads, nil
}

// FundEscrow records the external funding event reported by the payment
// provider.
func (s *Service) FundEscrow(ctx context.Context, session Session, escrowID string, input FundEscrowInput) (map[string]any, error) {
	escrow, err := s.loadEscrowForParty(ctx, session, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.BuyerID != session.UserID {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the buyer funds escrow", nil)
	}

	ok, err := s.store.MarkEscrowFunded(ctx, escrowID, input.Provider, input.ReferenceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "INVALID_ESCROW_STATUS", "Only initiated escrows can be funded", nil)
	}

	funded, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, funded.SellerID, "escrow_funded", "Escrow funded",
		fmt.Sprintf("The buyer funded escrow with %s. Migration can begin.", formatCents(funded.EscrowAmount)), funded.ID)
	s.notify(ctx, funded.BuyerID, "escrow_funded", "Escrow funded",
		"Your escrow payment was received. Create the migration checklist to start the handover.", funded.ID)
	return escrowPayload(funded), nil
}

// ReleaseEscrow pays the seller out after migration completes.
func (s *Service) ReleaseEscrow(ctx context.Context, session Session, escrowID string) (map[string]any, error) {
	escrow, err := s.loadEscrowForParty(ctx, session, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.BuyerID != session.UserID && access.Normalize(session.Role) != access.RoleAdmin {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the buyer or an admin releases escrow", nil)
	}

	ok, err := s.store.MarkEscrowReleased(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "INVALID_ESCROW_STATUS", "Only complete escrows can be released", nil)
	}

	released, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, released.SellerID, "escrow_released", "Funds released",
		fmt.Sprintf("Escrow released. %s is on its way to you.", formatCents(released.SellerNetAmount)), released.ID)
	return escrowPayload(released), nil
}

// defaultTasks is the seed checklist for an online business handover.
var defaultTasks = []struct {
	Category string
	Title    string
}{
	{"domain", "Transfer domain name to the buyer's registrar"},
	{"hosting", "Migrate hosting and infrastructure access"},
	{"code", "Hand over source code repositories and deploy keys"},
	{"payments", "Switch payment processor accounts"},
	{"ads", "Transfer advertising and analytics accounts"},
	{"inventory", "Transfer supplier relationships and inventory records"},
	{"other", "Share remaining credentials and operating documentation"},
}

// CreateChecklist seeds the migration checklist for a funded escrow. The
// checklist, its default task set, and the escrow's move into migration
// commit together. An in_migration escrow already has a checklist, so the
// unique constraint answers with the duplicate conflict.
func (s *Service) CreateChecklist(ctx context.Context, session Session, escrowID string) (map[string]any, error) {
	escrow, err := s.loadEscrowForParty(ctx, session, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != "funded" && escrow.Status != "in_migration" {
		return nil, domainError(http.StatusConflict, "INVALID_ESCROW_STATUS", "The escrow must be funded before migration starts", nil)
	}

	checklist := store.MigrationChecklist{
		ID:       util.NewID("chk"),
		EscrowID: escrowID,
		Status:   "in_progress",
	}
	tasks := make([]store.MigrationTask, 0, len(defaultTasks))
	for _, seed := range defaultTasks {
		tasks = append(tasks, store.MigrationTask{
			ID:          util.NewID("tsk"),
			ChecklistID: checklist.ID,
			Category:    seed.Category,
			Title:       seed.Title,
			Status:      "pending",
		})
	}

	if err := s.store.CreateChecklistWithTasks(ctx, checklist, tasks); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domainError(http.StatusConflict, "CHECKLIST_ALREADY_EXISTS", "A checklist already exists for this escrow", nil)
		}
		return nil, err
	}

	counterpart := escrow.SellerID
	if session.UserID == escrow.SellerID {
		counterpart = escrow.BuyerID
	}
	s.notify(ctx, counterpart, "checklist_created", "Migration started",
		fmt.Sprintf("%s created the migration checklist.", session.UserName), checklist.ID)

	return s.checklistPayload(ctx, checklist)
}

func (s *Service) GetChecklist(ctx context.Context, session Session, escrowID string) (map[string]any, error) {
	if _, err := s.loadEscrowForParty(ctx, session, escrowID); err != nil {
		return nil, err
	}
	checklist, err := s.store.GetChecklistByEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	return s.checklistPayload(ctx, checklist)
}

// UpdateTask changes a task's workflow status. Confirmation flags cannot be
// written directly; the dedicated confirm operation records them per party.
func (s *Service) UpdateTask(ctx context.Context, session Session, taskID string, input UpdateTaskInput) (map[string]any, error) {
	if input.BuyerConfirmed != nil || input.SellerConfirmed != nil {
		return nil, domainError(http.StatusBadRequest, "CONFIRMATION_NOT_ALLOWED", "Confirmations are recorded through the confirm endpoint", nil)
	}
	if input.Status == nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Status is required", nil)
	}
	status := *input.Status
	if status != "pending" && status != "in_progress" && status != "complete" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Status must be pending, in_progress, or complete", nil)
	}

	if _, err := s.taskForParty(ctx, session, taskID); err != nil {
		return nil, err
	}

	ok, err := s.store.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Completed tasks cannot be edited", nil)
	}

	fresh, err := s.store.GetTaskContext(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return taskPayload(fresh.Task), nil
}

// ConfirmTask records the session party's confirmation on a task. When both
// parties have confirmed, the task completes; if it was the last open task
// the checklist and escrow advance too.
func (s *Service) ConfirmTask(ctx context.Context, session Session, taskID string) (map[string]any, error) {
	tc, err := s.taskForParty(ctx, session, taskID)
	if err != nil {
		return nil, err
	}
	asBuyer := session.UserID == tc.BuyerID

	task, checklistCompleted, err := s.store.ConfirmTask(ctx, taskID, asBuyer)
	if err != nil {
		return nil, err
	}

	counterpart := tc.SellerID
	if !asBuyer {
		counterpart = tc.BuyerID
	}
	if task.Status == "complete" {
		s.notify(ctx, counterpart, "task_complete", "Task complete",
			fmt.Sprintf("%q is confirmed by both sides.", task.Title), task.ID)
	} else {
		s.notify(ctx, counterpart, "task_confirmed", "Task awaiting your confirmation",
			fmt.Sprintf("%s confirmed %q. Confirm to complete it.", session.UserName, task.Title), task.ID)
	}
	if checklistCompleted {
		s.notify(ctx, tc.BuyerID, "migration_complete", "Migration complete",
			"All migration tasks are confirmed. The escrow is ready for release.", tc.EscrowID)
		s.notify(ctx, tc.SellerID, "migration_complete", "Migration complete",
			"All migration tasks are confirmed. The escrow is ready for release.", tc.EscrowID)
	}

	payload := taskPayload(task)
	payload["checklistCompleted"] = checklistCompleted
	return payload, nil
}

func (s *Service) DeleteTask(ctx context.Context, session Session, taskID string) error {
	if _, err := s.taskForParty(ctx, session, taskID); err != nil {
		return err
	}
	ok, err := s.store.DeleteTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusConflict, "INVALID_STATUS", "Completed tasks cannot be deleted", nil)
	}
	return nil
}

func (s *Service) loadEscrowForParty(ctx context.Context, session Session, escrowID string) (store.EscrowTransaction, error) {
	escrow, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return store.EscrowTransaction{}, err
	}
	party := access.ResolveParty(session.UserID, escrow.BuyerID, escrow.SellerID)
	if party == access.PartyNone && access.Normalize(session.Role) != access.RoleAdmin {
		return store.EscrowTransaction{}, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You are not a party to this escrow", nil)
	}
	return escrow, nil
}

func (s *Service) taskForParty(ctx context.Context, session Session, taskID string) (store.TaskContext, error) {
	tc, err := s.store.GetTaskContext(ctx, taskID)
	if err != nil {
		return store.TaskContext{}, err
	}
	party := access.ResolveParty(session.UserID, tc.BuyerID, tc.SellerID)
	if party == access.PartyNone {
		return store.TaskContext{}, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You are not a party to this migration", nil)
	}
	return tc, nil
}

func (s *Service) checklistPayload(ctx context.Context, checklist store.MigrationChecklist) (map[string]any, error) {
	tasks, err := s.store.ListTasks(ctx, checklist.ID)
	if err != nil {
		return nil, err
	}
	taskPayloads := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		taskPayloads = append(taskPayloads, taskPayload(task))
	}
	return map[string]any{
		"id":          checklist.ID,
		"escrowId":    checklist.EscrowID,
		"status":      checklist.Status,
		"completedAt": checklist.CompletedAt,
		"createdAt":   checklist.CreatedAt,
		"tasks":       taskPayloads,
	}, nil
}

func taskPayload(task store.MigrationTask) map[string]any {
	return map[string]any{
		"id":              task.ID,
		"checklistId":     task.ChecklistID,
		"taskCategory":    task.Category,
		"title":           task.Title,
		"status":          task.Status,
		"buyerConfirmed":  task.BuyerConfirmed,
		"sellerConfirmed": task.SellerConfirmed,
		"completedAt":     task.CompletedAt,
		"createdAt":       task.CreatedAt,
		"updatedAt":       task.UpdatedAt,
	}
}

func escrowPayload(escrow store.EscrowTransaction) map[string]any {
	return map[string]any{
		"id":                 escrow.ID,
		"loiId":              escrow.LOIID,
		"listingId":          escrow.ListingID,
		"buyerId":            escrow.BuyerID,
		"sellerId":           escrow.SellerID,
		"status":             escrow.Status,
		"escrowAmount":       escrow.EscrowAmount,
		"platformFeePercent": escrow.PlatformFeePercent,
		"platformFeeAmount":  escrow.PlatformFeeAmount,
		"buyerTotalAmount":   escrow.BuyerTotalAmount,
		"sellerNetAmount":    escrow.SellerNetAmount,
		"provider":           escrow.Provider,
		"referenceId":        escrow.ReferenceID,
		"fundedAt":           escrow.FundedAt,
		"releasedAt":         escrow.ReleasedAt,
		"createdAt":          escrow.CreatedAt,
		"updatedAt":          escrow.UpdatedAt,
	}
}
