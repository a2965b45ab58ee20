package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/access"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/export"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/util"
)

type CreateLOIInput struct {
	ListingID        string    `json:"listingId"`
	SellerID         string    `json:"sellerId"`
	OfferPrice       int64     `json:"offerPrice"`
	CashAmount       int64     `json:"cashAmount"`
	EarnoutAmount    int64     `json:"earnoutAmount"`
	DueDiligenceDays int       `json:"dueDiligenceDays"`
	ExclusivityDays  int       `json:"exclusivityDays"`
	ExpirationDate   time.Time `json:"expirationDate"`
	Conditions       []string  `json:"conditions"`
}

// UpdateLOIInput is a partial update. Structural fields are pointers only so
// their presence in the body can be rejected.
type UpdateLOIInput struct {
	ListingID *string `json:"listingId"`
	BuyerID   *string `json:"buyerId"`
	SellerID  *string `json:"sellerId"`
	Status    *string `json:"status"`

	OfferPrice       *int64     `json:"offerPrice"`
	CashAmount       *int64     `json:"cashAmount"`
	EarnoutAmount    *int64     `json:"earnoutAmount"`
	DueDiligenceDays *int       `json:"dueDiligenceDays"`
	ExclusivityDays  *int       `json:"exclusivityDays"`
	ExpirationDate   *time.Time `json:"expirationDate"`
	Conditions       *[]string  `json:"conditions"`
}

type RespondLOIInput struct {
	Status        string `json:"status"`
	ResponseNotes string `json:"responseNotes"`
}

func (s *Service) CreateLOI(ctx context.Context, session Session, input CreateLOIInput) (map[string]any, error) {
	listing, err := s.store.GetListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != "approved" {
		return nil, domainError(http.StatusConflict, "LISTING_NOT_APPROVED", "Offers can only be made on approved listings", nil)
	}
	if input.SellerID != "" && input.SellerID != listing.SellerID {
		return nil, domainError(http.StatusBadRequest, "SELLER_ID_MISMATCH", "Seller does not match the listing", nil)
	}
	if listing.SellerID == session.UserID {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "You cannot make an offer on your own listing", nil)
	}
	if input.OfferPrice <= 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Offer price must be positive", nil)
	}
	if input.CashAmount < 0 || input.EarnoutAmount < 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Amounts must not be negative", nil)
	}
	if input.OfferPrice != input.CashAmount+input.EarnoutAmount {
		return nil, domainError(http.StatusBadRequest, "OFFER_PRICE_MISMATCH", "Offer price must equal cash plus earnout", map[string]any{
			"offerPrice": input.OfferPrice,
			"cash":       input.CashAmount,
			"earnout":    input.EarnoutAmount,
		})
	}
	if !input.ExpirationDate.After(time.Now()) {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Expiration date must be in the future", nil)
	}

	offer := store.LOIOffer{
		ID:               util.NewID("loi"),
		ListingID:        listing.ID,
		BuyerID:          session.UserID,
		SellerID:         listing.SellerID,
		Status:           "draft",
		OfferPrice:       input.OfferPrice,
		CashAmount:       input.CashAmount,
		EarnoutAmount:    input.EarnoutAmount,
		DueDiligenceDays: input.DueDiligenceDays,
		ExclusivityDays:  input.ExclusivityDays,
		ExpirationDate:   input.ExpirationDate,
		Conditions:       input.Conditions,
	}
	if err := s.store.InsertLOI(ctx, offer); err != nil {
		return nil, err
	}

	created, err := s.store.GetLOI(ctx, offer.ID)
	if err != nil {
		return nil, err
	}
	return loiPayload(created), nil
}

func (s *Service) GetLOI(ctx context.Context, session Session, loiID string) (map[string]any, error) {
	offer, err := s.loadLOIForParty(ctx, session, loiID)
	if err != nil {
		return nil, err
	}
	payload := loiPayload(offer)
	escrow, err := s.store.GetEscrowByLOI(ctx, offer.ID)
	switch {
	case err == nil:
		payload["escrowId"] = escrow.ID
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}
	return payload, nil
}

func (s *Service) ListLOIs(ctx context.Context, session Session) ([]map[string]any, error) {
	offers, err := s.store.ListLOIsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(offers))
	for _, offer := range offers {
		payloads = append(payloads, loiPayload(offer))
	}
	return payloads, nil
}

func (s *Service) UpdateLOI(ctx context.Context, session Session, loiID string, input UpdateLOIInput) (map[string]any, error) {
	switch {
	case input.ListingID != nil:
		return nil, domainError(http.StatusBadRequest, "FORBIDDEN_FIELD", "listingId cannot be changed", nil)
	case input.BuyerID != nil:
		return nil, domainError(http.StatusBadRequest, "FORBIDDEN_FIELD", "buyerId cannot be changed", nil)
	case input.SellerID != nil:
		return nil, domainError(http.StatusBadRequest, "FORBIDDEN_FIELD", "sellerId cannot be changed", nil)
	case input.Status != nil:
		return nil, domainError(http.StatusBadRequest, "FORBIDDEN_FIELD", "status cannot be set directly", nil)
	}

	offer, err := s.store.GetLOI(ctx, loiID)
	if err != nil {
		return nil, err
	}
	if offer.BuyerID != session.UserID {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the buyer can edit this offer", nil)
	}
	if offer.Status != "draft" {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Only draft offers can be edited", nil)
	}

	if input.OfferPrice != nil {
		offer.OfferPrice = *input.OfferPrice
	}
	if input.CashAmount != nil {
		offer.CashAmount = *input.CashAmount
	}
	if input.EarnoutAmount != nil {
		offer.EarnoutAmount = *input.EarnoutAmount
	}
	if input.DueDiligenceDays != nil {
		offer.DueDiligenceDays = *input.DueDiligenceDays
	}
	if input.ExclusivityDays != nil {
		offer.ExclusivityDays = *input.ExclusivityDays
	}
	if input.ExpirationDate != nil {
		offer.ExpirationDate = *input.ExpirationDate
	}
	if input.Conditions != nil {
		offer.Conditions = *input.Conditions
	}

	// The price triple is revalidated against the patched values, not just
	// the fields that changed.
	if offer.OfferPrice <= 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Offer price must be positive", nil)
	}
	if offer.OfferPrice != offer.CashAmount+offer.EarnoutAmount {
		return nil, domainError(http.StatusBadRequest, "INVALID_PRICE_CALCULATION", "Offer price must equal cash plus earnout", map[string]any{
			"offerPrice": offer.OfferPrice,
			"cash":       offer.CashAmount,
			"earnout":    offer.EarnoutAmount,
		})
	}
	if !offer.ExpirationDate.After(time.Now()) {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Expiration date must be in the future", nil)
	}

	updated, err := s.store.UpdateLOITerms(ctx, offer)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Only draft offers can be edited", nil)
	}

	fresh, err := s.store.GetLOI(ctx, loiID)
	if err != nil {
		return nil, err
	}
	return loiPayload(fresh), nil
}

func (s *Service) SendLOI(ctx context.Context, session Session, loiID string) (map[string]any, error) {
	ok, err := s.store.MarkLOISent(ctx, loiID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Only your own draft offers can be sent", nil)
	}

	offer, err := s.store.GetLOI(ctx, loiID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListing(ctx, offer.ListingID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, offer.SellerID, "loi_received", "New offer received",
		fmt.Sprintf("%s sent a letter of intent for %q.", session.UserName, listing.Title), offer.ID)
	if seller, err := s.store.GetUserByID(ctx, offer.SellerID); err == nil {
		s.sendOfferMail(seller.Email, seller.DisplayName, listing.Title,
			"You received a letter of intent",
			fmt.Sprintf("%s made an offer of %s. Sign in to review and respond before %s.",
				session.UserName, formatCents(offer.OfferPrice), offer.ExpirationDate.Format("January 2, 2006")))
	}
	return loiPayload(offer), nil
}

func (s *Service) RespondLOI(ctx context.Context, session Session, loiID string, input RespondLOIInput) (map[string]any, error) {
	if input.Status != "accepted" && input.Status != "rejected" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Status must be accepted or rejected", nil)
	}

	ok, err := s.store.RespondLOI(ctx, loiID, session.UserID, input.Status, input.ResponseNotes)
	if err != nil {
		return nil, err
	}
	if !ok {
		offer, err := s.store.GetLOI(ctx, loiID)
		if err != nil {
			return nil, err
		}
		if offer.SellerID != session.UserID {
			return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the seller can respond to this offer", nil)
		}
		if offer.Status == "sent" && !offer.ExpirationDate.After(time.Now()) {
			return nil, domainError(http.StatusConflict, "INVALID_STATUS", "This offer has expired", nil)
		}
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "Only sent offers can be answered", nil)
	}

	offer, err := s.store.GetLOI(ctx, loiID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListing(ctx, offer.ListingID)
	if err != nil {
		return nil, err
	}

	title := "Offer rejected"
	detail := fmt.Sprintf("Your offer for %q was rejected.", listing.Title)
	if offer.Status == "accepted" {
		title = "Offer accepted"
		detail = fmt.Sprintf("Your offer for %q was accepted. You can now open escrow.", listing.Title)
	}
	s.notify(ctx, offer.BuyerID, "loi_"+offer.Status, title, detail, offer.ID)
	if buyer, err := s.store.GetUserByID(ctx, offer.BuyerID); err == nil {
		s.sendOfferMail(buyer.Email, buyer.DisplayName, listing.Title, title, detail)
	}
	return loiPayload(offer), nil
}

func (s *Service) DeleteLOI(ctx context.Context, session Session, loiID string) error {
	ok, err := s.store.DeleteLOI(ctx, loiID, session.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusConflict, "INVALID_STATUS", "Only your own draft offers can be deleted", nil)
	}
	return nil
}

// ExportLOI renders the offer as a formatted letter in the requested format.
func (s *Service) ExportLOI(ctx context.Context, session Session, loiID string, format export.Format) (*export.Result, error) {
	if format != export.FormatPDF && format != export.FormatDOCX {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Format must be pdf or docx", nil)
	}
	offer, err := s.loadLOIForParty(ctx, session, loiID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListing(ctx, offer.ListingID)
	if err != nil {
		return nil, err
	}
	buyer, err := s.store.GetUserByID(ctx, offer.BuyerID)
	if err != nil {
		return nil, err
	}
	seller, err := s.store.GetUserByID(ctx, offer.SellerID)
	if err != nil {
		return nil, err
	}

	return s.export.ExportLOI(export.LOIData{
		ListingTitle:     listing.Title,
		BuyerName:        buyer.DisplayName,
		SellerName:       seller.DisplayName,
		Status:           effectiveLOIStatus(offer),
		OfferPrice:       offer.OfferPrice,
		CashAmount:       offer.CashAmount,
		EarnoutAmount:    offer.EarnoutAmount,
		DueDiligenceDays: offer.DueDiligenceDays,
		ExclusivityDays:  offer.ExclusivityDays,
		ExpirationDate:   offer.ExpirationDate,
		Conditions:       offer.Conditions,
		CreatedAt:        offer.CreatedAt,
	}, format)
}

func (s *Service) loadLOIForParty(ctx context.Context, session Session, loiID string) (store.LOIOffer, error) {
	offer, err := s.store.GetLOI(ctx, loiID)
	if err != nil {
		return store.LOIOffer{}, err
	}
	party := access.ResolveParty(session.UserID, offer.BuyerID, offer.SellerID)
	if party == access.PartyNone && access.Normalize(session.Role) != access.RoleAdmin {
		return store.LOIOffer{}, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You are not a party to this offer", nil)
	}
	return offer, nil
}

// effectiveLOIStatus derives expiry at read time. A sent offer past its
// expiration date reads as expired without a write.
func effectiveLOIStatus(offer store.LOIOffer) string {
	if offer.Status == "sent" && !offer.ExpirationDate.After(time.Now()) {
		return "expired"
	}
	return offer.Status
}

func loiPayload(offer store.LOIOffer) map[string]any {
	conditions := offer.Conditions
	if conditions == nil {
		conditions = []string{}
	}
	payload := map[string]any{
		"id":               offer.ID,
		"listingId":        offer.ListingID,
		"buyerId":          offer.BuyerID,
		"sellerId":         offer.SellerID,
		"status":           effectiveLOIStatus(offer),
		"offerPrice":       offer.OfferPrice,
		"cashAmount":       offer.CashAmount,
		"earnoutAmount":    offer.EarnoutAmount,
		"dueDiligenceDays": offer.DueDiligenceDays,
		"exclusivityDays":  offer.ExclusivityDays,
		"expirationDate":   offer.ExpirationDate,
		"conditions":       conditions,
		"sentAt":           offer.SentAt,
		"respondedAt":      offer.RespondedAt,
		"createdAt":        offer.CreatedAt,
		"updatedAt":        offer.UpdatedAt,
	}
	if offer.ResponseNotes != "" {
		payload["responseNotes"] = offer.ResponseNotes
	}
	return payload
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
