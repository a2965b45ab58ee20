package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/access"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/matching"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
)

// matchLimit caps both recommendation directions.
const matchLimit = 10

// BuyerMatches scores every approved listing against the session buyer's
// profile and returns the top matches, highest score first. Ties keep the
// feed's ordering.
func (s *Service) BuyerMatches(ctx context.Context, session Session) ([]map[string]any, error) {
	profile, err := s.store.GetBuyerProfile(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "BUYER_PROFILE_NOT_FOUND", "Complete your buyer profile to get recommendations", nil)
		}
		return nil, err
	}
	if !profile.OnboardingCompleted {
		return nil, domainError(http.StatusConflict, "ONBOARDING_NOT_COMPLETED", "Finish onboarding to get recommendations", nil)
	}

	listings, err := s.store.ListApprovedListings(ctx)
	if err != nil {
		return nil, err
	}

	buyer := matchingBuyer(profile)
	matches := make([]map[string]any, 0, len(listings))
	for _, item := range listings {
		result := matching.Score(buyer, matchingListing(item))
		if result.Score <= 0 {
			continue
		}
		matches = append(matches, map[string]any{
			"listing": listingPayload(item, false),
			"score":   result.Score,
			"reasons": result.Reasons,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i]["score"].(int) > matches[j]["score"].(int)
	})
	if len(matches) > matchLimit {
		matches = matches[:matchLimit]
	}
	return matches, nil
}

// ListingBuyerMatches is the reverse direction: buyers whose profiles fit a
// seller's approved listing. Seller and admin only.
func (s *Service) ListingBuyerMatches(ctx context.Context, session Session, listingID string) ([]map[string]any, error) {
	item, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != session.UserID && access.Normalize(session.Role) != access.RoleAdmin {
		return nil, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Only the seller sees buyer matches", nil)
	}
	if item.Status != "approved" {
		return nil, domainError(http.StatusConflict, "LISTING_NOT_APPROVED", "Buyer matches are computed for approved listings", nil)
	}

	profiles, err := s.store.ListCompletedBuyerProfiles(ctx)
	if err != nil {
		return nil, err
	}

	target := matchingListing(item)
	matches := make([]map[string]any, 0, len(profiles))
	for _, profile := range profiles {
		result := matching.Score(matchingBuyer(profile), target)
		if result.Score <= 0 {
			continue
		}
		matches = append(matches, map[string]any{
			"buyerId":            profile.UserID,
			"verificationStatus": profile.VerificationStatus,
			"score":              result.Score,
			"reasons":            result.Reasons,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i]["score"].(int) > matches[j]["score"].(int)
	})
	if len(matches) > matchLimit {
		matches = matches[:matchLimit]
	}
	return matches, nil
}

func matchingBuyer(profile store.BuyerProfile) matching.Buyer {
	return matching.Buyer{
		Industries: profile.Industries,
		Regions:    profile.Regions,
		BudgetMin:  profile.BudgetMin,
		BudgetMax:  profile.BudgetMax,
	}
}

func matchingListing(item store.Listing) matching.Listing {
	return matching.Listing{
		BusinessType: item.BusinessType,
		Geography:    item.Geography,
		AskingPrice:  item.AskingPrice,
	}
}
