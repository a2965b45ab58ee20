package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/access"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/revisions"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/search"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/util"
)

type ListingInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	BusinessType string `json:"businessType"`
	Geography    string `json:"geography"`
	AskingPrice  int64  `json:"askingPrice"`
	TTMRevenue   int64  `json:"ttmRevenue"`
	TTMProfit    int64  `json:"ttmProfit"`
	BusinessURL  string `json:"businessUrl"`
	BrandName    string `json:"brandName"`
}

type ReviewListingInput struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
}

func (s *Service) CreateListing(ctx context.Context, session Session, input ListingInput) (map[string]any, error) {
	allowed, reason := access.CanCreateListing(access.Creator{
		Role:             access.Normalize(session.Role),
		MembershipActive: session.MembershipStatus == "active",
		TeacherVerified:  session.TeacherVerified,
	})
	if !allowed {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You are not allowed to create listings", map[string]any{"reason": reason})
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Title is required", nil)
	}
	if input.AskingPrice <= 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Asking price must be positive", nil)
	}

	item := store.Listing{
		ID:           util.NewID("lst"),
		SellerID:     session.UserID,
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		BusinessType: input.BusinessType,
		Geography:    input.Geography,
		Status:       "draft",
		AskingPrice:  input.AskingPrice,
		TTMRevenue:   input.TTMRevenue,
		TTMProfit:    input.TTMProfit,
		BusinessURL:  input.BusinessURL,
		BrandName:    input.BrandName,
	}
	if err := s.store.InsertListing(ctx, item); err != nil {
		return nil, err
	}

	if s.revisions != nil {
		if err := s.revisions.EnsureListingRepo(item.ID, listingSnapshot(item), session.UserName); err != nil {
			return nil, fmt.Errorf("init listing history: %w", err)
		}
	}

	created, err := s.store.GetListing(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return listingPayload(created, true), nil
}

// GetListing returns a listing visible to the given viewer. Confidential
// fields (businessUrl, brandName) come back null unless the viewer is the
// seller, an admin, or a verified buyer who signed the listing's NDA. The
// keys are always present. Unauthenticated reads of approved listings are
// allowed.
func (s *Service) GetListing(ctx context.Context, viewer Session, listingID string) (map[string]any, error) {
	item, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	isOwner := viewer.UserID != "" && viewer.UserID == item.SellerID
	isAdmin := access.Normalize(viewer.Role) == access.RoleAdmin

	if item.Status != "approved" && !isOwner && !isAdmin {
		return nil, domainError(http.StatusNotFound, "LISTING_NOT_FOUND", "Listing not found", nil)
	}

	includeConfidential := isOwner || isAdmin
	if !includeConfidential && viewer.UserID != "" {
		signed, err := s.store.HasSignedNDA(ctx, item.ID, viewer.UserID)
		if err != nil {
			return nil, err
		}
		if signed {
			profile, err := s.store.GetBuyerProfile(ctx, viewer.UserID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			includeConfidential = access.CanViewConfidential(access.Viewer{
				UserID:     viewer.UserID,
				IsVerified: profile.VerificationStatus == "verified",
				SignedNDA:  signed,
			})
		}
	}
	return listingPayload(item, includeConfidential), nil
}

func (s *Service) UpdateListing(ctx context.Context, session Session, listingID string, input ListingInput) (map[string]any, error) {
	item, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != session.UserID {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the seller can edit this listing", nil)
	}
	if item.Status == "rejected" {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Rejected listings cannot be edited", nil)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Title is required", nil)
	}
	if input.AskingPrice <= 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Asking price must be positive", nil)
	}

	item.Title = strings.TrimSpace(input.Title)
	item.Description = input.Description
	item.BusinessType = input.BusinessType
	item.Geography = input.Geography
	item.AskingPrice = input.AskingPrice
	item.TTMRevenue = input.TTMRevenue
	item.TTMProfit = input.TTMProfit
	item.BusinessURL = input.BusinessURL
	item.BrandName = input.BrandName

	updated, err := s.store.UpdateListing(ctx, item)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Listing is not editable", nil)
	}

	if s.revisions != nil {
		if _, err := s.revisions.Commit(listingID, listingSnapshot(item), session.UserName, "Update listing"); err != nil && !errors.Is(err, revisions.ErrNoChanges) {
			return nil, fmt.Errorf("record listing revision: %w", err)
		}
	}

	fresh, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if s.search != nil && fresh.Status == "approved" {
		s.search.IndexListing(searchRecord(fresh))
	}
	return listingPayload(fresh, true), nil
}

func (s *Service) SubmitListing(ctx context.Context, session Session, listingID string) (map[string]any, error) {
	ok, err := s.store.SubmitListing(ctx, listingID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Only your own draft listings can be submitted", nil)
	}
	item, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return listingPayload(item, true), nil
}

func (s *Service) ReviewListing(ctx context.Context, session Session, listingID string, input ReviewListingInput) (map[string]any, error) {
	if access.Normalize(session.Role) != access.RoleAdmin {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only admins review listings", nil)
	}
	if input.Status != "approved" && input.Status != "rejected" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Status must be approved or rejected", nil)
	}
	if input.Status == "rejected" && strings.TrimSpace(input.RejectionReason) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Rejection reason is required", nil)
	}

	ok, err := s.store.ReviewListing(ctx, listingID, input.Status, input.RejectionReason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Only submitted listings can be reviewed", nil)
	}

	item, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		if item.Status == "approved" {
			s.search.IndexListing(searchRecord(item))
		} else {
			s.search.DeleteListing(item.ID)
		}
	}

	if item.Status == "approved" {
		s.notify(ctx, item.SellerID, "listing_approved", "Listing approved", fmt.Sprintf("%q is now live on the marketplace.", item.Title), item.ID)
	} else {
		s.notify(ctx, item.SellerID, "listing_rejected", "Listing rejected", fmt.Sprintf("%q was rejected: %s", item.Title, item.RejectionReason), item.ID)
	}
	return listingPayload(item, true), nil
}

func (s *Service) DeleteListing(ctx context.Context, session Session, listingID string) error {
	ok, err := s.store.DeleteListing(ctx, listingID, session.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusConflict, "INVALID_STATUS", "Only your own draft listings can be deleted", nil)
	}
	if s.search != nil {
		s.search.DeleteListing(listingID)
	}
	return nil
}

// ListApprovedListings is the public marketplace feed. Confidential fields
// are always null in list views; the detail endpoint applies per-viewer
// gating.
func (s *Service) ListApprovedListings(ctx context.Context) ([]map[string]any, error) {
	items, err := s.store.ListApprovedListings(ctx)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, listingPayload(item, false))
	}
	return payloads, nil
}

func (s *Service) MyListings(ctx context.Context, session Session) ([]map[string]any, error) {
	items, err := s.store.ListListingsBySeller(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, listingPayload(item, true))
	}
	return payloads, nil
}

func (s *Service) ListingsByStatus(ctx context.Context, session Session, status string) ([]map[string]any, error) {
	if access.Normalize(session.Role) != access.RoleAdmin {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only admins list by status", nil)
	}
	items, err := s.store.ListListingsByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, listingPayload(item, true))
	}
	return payloads, nil
}

// SignListingNDA records an NDA signature for the session's user against an
// approved listing. An optional signed document is archived in object
// storage when configured.
func (s *Service) SignListingNDA(ctx context.Context, session Session, listingID string, document []byte, contentType string) (map[string]any, error) {
	item, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if item.Status != "approved" {
		return nil, domainError(http.StatusConflict, "LISTING_NOT_APPROVED", "NDAs can only be signed on approved listings", nil)
	}
	if item.SellerID == session.UserID {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Sellers do not sign their own NDA", nil)
	}

	documentKey := ""
	if len(document) > 0 && s.storage.IsConfigured() {
		documentKey = fmt.Sprintf("ndas/%s/%s", listingID, session.UserID)
		if _, err := s.storage.PutDocument(ctx, documentKey, document, contentType); err != nil {
			return nil, fmt.Errorf("store nda document: %w", err)
		}
	}

	if err := s.store.SignNDA(ctx, store.ListingNDA{
		ListingID:   listingID,
		BuyerID:     session.UserID,
		DocumentKey: documentKey,
	}); err != nil {
		return nil, err
	}

	s.notify(ctx, item.SellerID, "nda_signed", "NDA signed", fmt.Sprintf("%s signed the NDA for %q.", session.UserName, item.Title), item.ID)
	return map[string]any{"listingId": listingID, "signed": true}, nil
}

// ListingRevisions returns the edit history of a listing with per-revision
// field diffs, newest first. Seller and admin only.
func (s *Service) ListingRevisions(ctx context.Context, session Session, listingID string, limit int) ([]map[string]any, error) {
	item, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != session.UserID && access.Normalize(session.Role) != access.RoleAdmin {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the seller or an admin can view listing history", nil)
	}
	if s.revisions == nil {
		return []map[string]any{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	history, err := s.revisions.History(listingID, limit+1)
	if err != nil {
		return nil, err
	}

	entries := make([]map[string]any, 0, len(history))
	for i, info := range history {
		if i == limit {
			break
		}
		entry := map[string]any{
			"hash":      info.Hash,
			"message":   info.Message,
			"author":    info.Author,
			"createdAt": info.CreatedAt,
			"changes":   []map[string]string{},
		}
		if i+1 < len(history) {
			current, err := s.revisions.GetSnapshotByHash(listingID, info.Hash)
			if err != nil {
				return nil, err
			}
			previous, err := s.revisions.GetSnapshotByHash(listingID, history[i+1].Hash)
			if err != nil {
				return nil, err
			}
			entry["changes"] = revisions.DiffFields(previous, current)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) SearchListings(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}}
	}
	return s.search.Search(q)
}

func listingSnapshot(item store.Listing) revisions.Snapshot {
	return revisions.Snapshot{
		Title:        item.Title,
		Description:  item.Description,
		BusinessType: item.BusinessType,
		Geography:    item.Geography,
		AskingPrice:  item.AskingPrice,
		TTMRevenue:   item.TTMRevenue,
		TTMProfit:    item.TTMProfit,
		BusinessURL:  item.BusinessURL,
		BrandName:    item.BrandName,
	}
}

func searchRecord(item store.Listing) search.ListingRecord {
	return search.ListingRecord{
		ID:           item.ID,
		Title:        item.Title,
		Description:  item.Description,
		BusinessType: item.BusinessType,
		Geography:    item.Geography,
		Status:       item.Status,
	}
}

func listingPayload(item store.Listing, includeConfidential bool) map[string]any {
	var businessURL, brandName any
	if includeConfidential {
		if item.BusinessURL != "" {
			businessURL = item.BusinessURL
		}
		if item.BrandName != "" {
			brandName = item.BrandName
		}
	}
	payload := map[string]any{
		"id":              item.ID,
		"sellerId":        item.SellerID,
		"title":           item.Title,
		"description":     item.Description,
		"businessType":    item.BusinessType,
		"geography":       item.Geography,
		"status":          item.Status,
		"askingPrice":     item.AskingPrice,
		"ttmRevenue":      item.TTMRevenue,
		"ttmProfit":       item.TTMProfit,
		"revenueMultiple": item.RevenueMultiple,
		"businessUrl":     businessURL,
		"brandName":       brandName,
		"createdAt":       item.CreatedAt,
		"updatedAt":       item.UpdatedAt,
	}
	if item.Status == "rejected" && item.RejectionReason != "" {
		payload["rejectionReason"] = item.RejectionReason
	}
	return payload
}
