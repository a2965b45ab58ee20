package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/access"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/util"
)

type BuyerProfileInput struct {
	Industries []string `json:"industries"`
	Regions    []string `json:"regions"`
	BudgetMin  int64    `json:"budgetMin"`
	BudgetMax  int64    `json:"budgetMax"`
}

type VerificationRequestInput struct {
	Notes string `json:"notes"`
}

type ReviewVerificationInput struct {
	Status string `json:"status"`
}

func (s *Service) GetBuyerProfile(ctx context.Context, session Session) (map[string]any, error) {
	profile, err := s.store.GetBuyerProfile(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "BUYER_PROFILE_NOT_FOUND", "Buyer profile not found", nil)
		}
		return nil, err
	}
	return buyerProfilePayload(profile), nil
}

func (s *Service) SaveBuyerProfile(ctx context.Context, session Session, input BuyerProfileInput) (map[string]any, error) {
	if input.BudgetMin < 0 || input.BudgetMax < 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Budget amounts must not be negative", nil)
	}
	if input.BudgetMax > 0 && input.BudgetMin > input.BudgetMax {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Budget minimum exceeds maximum", nil)
	}

	existing, err := s.store.GetBuyerProfile(ctx, session.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	verificationStatus := existing.VerificationStatus
	if verificationStatus == "" {
		verificationStatus = "unverified"
	}

	profile := store.BuyerProfile{
		UserID:              session.UserID,
		Industries:          input.Industries,
		Regions:             input.Regions,
		BudgetMin:           input.BudgetMin,
		BudgetMax:           input.BudgetMax,
		OnboardingCompleted: existing.OnboardingCompleted,
		VerificationStatus:  verificationStatus,
	}
	if err := s.store.UpsertBuyerProfile(ctx, profile); err != nil {
		return nil, err
	}

	saved, err := s.store.GetBuyerProfile(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return buyerProfilePayload(saved), nil
}

func (s *Service) CompleteOnboarding(ctx context.Context, session Session) (map[string]any, error) {
	profile, err := s.store.GetBuyerProfile(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "BUYER_PROFILE_NOT_FOUND", "Complete your buyer profile first", nil)
		}
		return nil, err
	}
	if err := s.store.SetOnboardingCompleted(ctx, session.UserID); err != nil {
		return nil, err
	}
	profile.OnboardingCompleted = true
	return buyerProfilePayload(profile), nil
}

// RequestVerification submits identity documents for admin review. The
// buyer's profile moves to pending until an admin decides.
func (s *Service) RequestVerification(ctx context.Context, session Session, input VerificationRequestInput, document []byte, contentType string) (map[string]any, error) {
	if _, err := s.store.GetBuyerProfile(ctx, session.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "BUYER_PROFILE_NOT_FOUND", "Complete your buyer profile first", nil)
		}
		return nil, err
	}

	if existing, err := s.store.GetVerificationForBuyer(ctx, session.UserID); err == nil {
		if existing.Status == "pending" {
			return nil, domainError(http.StatusConflict, "INVALID_STATUS", "A verification request is already pending", nil)
		}
		// A new submission supersedes the old evidence; the stale object is
		// removed best-effort so the bucket only holds the latest document.
		if existing.DocumentKey != "" && s.storage.IsConfigured() {
			_ = s.storage.RemoveDocument(ctx, existing.DocumentKey)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	request := store.VerificationRequest{
		ID:      util.NewID("vrf"),
		BuyerID: session.UserID,
		Status:  "pending",
		Notes:   input.Notes,
	}
	if len(document) > 0 && s.storage.IsConfigured() {
		request.DocumentKey = fmt.Sprintf("verifications/%s/%s", session.UserID, request.ID)
		if _, err := s.storage.PutDocument(ctx, request.DocumentKey, document, contentType); err != nil {
			return nil, fmt.Errorf("store verification document: %w", err)
		}
	}

	if err := s.store.InsertVerificationRequest(ctx, request); err != nil {
		return nil, err
	}
	if err := s.store.SetVerificationStatus(ctx, session.UserID, "pending"); err != nil {
		return nil, err
	}
	return verificationPayload(request), nil
}

func (s *Service) MyVerification(ctx context.Context, session Session) (map[string]any, error) {
	request, err := s.store.GetVerificationForBuyer(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payload := verificationPayload(request)
	if request.DocumentKey != "" && s.storage.IsConfigured() {
		if url, err := s.storage.DocumentURL(ctx, request.DocumentKey, 15*time.Minute); err == nil {
			payload["documentUrl"] = url
		}
	}
	return payload, nil
}

func (s *Service) ReviewVerification(ctx context.Context, session Session, requestID string, input ReviewVerificationInput) (map[string]any, error) {
	if access.Normalize(session.Role) != access.RoleAdmin {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only admins review verification requests", nil)
	}
	if input.Status != "verified" && input.Status != "rejected" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Status must be verified or rejected", nil)
	}

	buyerID, err := s.store.ReviewVerification(ctx, requestID, input.Status, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Only pending requests can be reviewed", nil)
		}
		return nil, err
	}

	profileStatus := input.Status
	if profileStatus == "rejected" {
		profileStatus = "unverified"
	}
	if err := s.store.SetVerificationStatus(ctx, buyerID, profileStatus); err != nil {
		return nil, err
	}

	if input.Status == "verified" {
		s.notify(ctx, buyerID, "verification_approved", "Verification approved", "Your buyer verification was approved. NDA-gated listing details are now available once you sign.", requestID)
	} else {
		s.notify(ctx, buyerID, "verification_rejected", "Verification rejected", "Your buyer verification was rejected. You can submit a new request.", requestID)
	}
	return map[string]any{"id": requestID, "status": input.Status, "buyerId": buyerID}, nil
}

func buyerProfilePayload(profile store.BuyerProfile) map[string]any {
	industries := profile.Industries
	if industries == nil {
		industries = []string{}
	}
	regions := profile.Regions
	if regions == nil {
		regions = []string{}
	}
	return map[string]any{
		"userId":              profile.UserID,
		"industries":          industries,
		"regions":             regions,
		"budgetMin":           profile.BudgetMin,
		"budgetMax":           profile.BudgetMax,
		"onboardingCompleted": profile.OnboardingCompleted,
		"verificationStatus":  profile.VerificationStatus,
		"updatedAt":           profile.UpdatedAt,
	}
}

func verificationPayload(request store.VerificationRequest) map[string]any {
	return map[string]any{
		"id":         request.ID,
		"buyerId":    request.BuyerID,
		"status":     request.Status,
		"notes":      request.Notes,
		"reviewedBy": request.ReviewedBy,
		"reviewedAt": request.ReviewedAt,
		"createdAt":  request.CreatedAt,
	}
}
