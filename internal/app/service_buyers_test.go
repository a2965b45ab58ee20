package app

import (
	"context"
	"net/http"
	"testing"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
)

func TestGetBuyerProfileNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.GetBuyerProfile(context.Background(), Session{UserID: "usr_buyer"})
	assertDomainCode(t, err, http.StatusNotFound, "BUYER_PROFILE_NOT_FOUND")
}

func TestSaveBuyerProfileValidatesBudget(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.SaveBuyerProfile(context.Background(), Session{UserID: "usr_buyer"}, BuyerProfileInput{BudgetMin: -1})
	assertDomainCode(t, err, http.StatusBadRequest, "INVALID_BODY")

	_, err = svc.SaveBuyerProfile(context.Background(), Session{UserID: "usr_buyer"}, BuyerProfileInput{BudgetMin: 200, BudgetMax: 100})
	assertDomainCode(t, err, http.StatusBadRequest, "INVALID_BODY")
}

func TestSaveBuyerProfilePreservesStatusFields(t *testing.T) {
	var upserted store.BuyerProfile
	fs := &fakeStore{
		getBuyerProfileFn: func(context.Context, string) (store.BuyerProfile, error) {
			return store.BuyerProfile{
				UserID:              "usr_buyer",
				OnboardingCompleted: true,
				VerificationStatus:  "verified",
			}, nil
		},
		upsertBuyerProfileFn: func(_ context.Context, profile store.BuyerProfile) error {
			upserted = profile
			return nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SaveBuyerProfile(context.Background(), Session{UserID: "usr_buyer"}, BuyerProfileInput{
		Industries: []string{"saas"},
		Regions:    []string{"us"},
		BudgetMin:  1_000_000,
		BudgetMax:  5_000_000,
	})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if !upserted.OnboardingCompleted {
		t.Fatalf("expected onboarding flag carried over")
	}
	if upserted.VerificationStatus != "verified" {
		t.Fatalf("expected verification status carried over, got %q", upserted.VerificationStatus)
	}
}

func TestSaveBuyerProfileDefaultsUnverified(t *testing.T) {
	var upserted store.BuyerProfile
	fs := &fakeStore{
		upsertBuyerProfileFn: func(_ context.Context, profile store.BuyerProfile) error {
			upserted = profile
			return nil
		},
	}
	fs.getBuyerProfileFn = func(context.Context, string) (store.BuyerProfile, error) {
		return upserted, nil
	}
	svc := newTestService(fs)

	payload, err := svc.SaveBuyerProfile(context.Background(), Session{UserID: "usr_buyer"}, BuyerProfileInput{
		Industries: []string{"saas"},
		BudgetMax:  5_000_000,
	})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if payload["verificationStatus"] != "unverified" {
		t.Fatalf("expected unverified default, got %v", payload["verificationStatus"])
	}
}

func TestCompleteOnboardingRequiresProfile(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CompleteOnboarding(context.Background(), Session{UserID: "usr_buyer"})
	assertDomainCode(t, err, http.StatusNotFound, "BUYER_PROFILE_NOT_FOUND")
}

func TestRequestVerificationRejectsPendingDuplicate(t *testing.T) {
	fs := &fakeStore{
		getBuyerProfileFn: func(context.Context, string) (store.BuyerProfile, error) {
			return store.BuyerProfile{UserID: "usr_buyer"}, nil
		},
		getVerificationForBuyerFn: func(context.Context, string) (store.VerificationRequest, error) {
			return store.VerificationRequest{ID: "vrf_1", BuyerID: "usr_buyer", Status: "pending"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.RequestVerification(context.Background(), Session{UserID: "usr_buyer"}, VerificationRequestInput{}, nil, "")
	assertDomainCode(t, err, http.StatusConflict, "INVALID_STATUS")
}

func TestRequestVerificationAllowsResubmissionAfterDecision(t *testing.T) {
	var inserted store.VerificationRequest
	fs := &fakeStore{
		getBuyerProfileFn: func(context.Context, string) (store.BuyerProfile, error) {
			return store.BuyerProfile{UserID: "usr_buyer"}, nil
		},
		getVerificationForBuyerFn: func(context.Context, string) (store.VerificationRequest, error) {
			return store.VerificationRequest{ID: "vrf_1", BuyerID: "usr_buyer", Status: "rejected"}, nil
		},
		insertVerificationRequestFn: func(_ context.Context, request store.VerificationRequest) error {
			inserted = request
			return nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.RequestVerification(context.Background(), Session{UserID: "usr_buyer"}, VerificationRequestInput{}, nil, ""); err != nil {
		t.Fatalf("request verification: %v", err)
	}
	if inserted.Status != "pending" {
		t.Fatalf("expected a fresh pending request, got %q", inserted.Status)
	}
}

func TestRequestVerificationMovesProfileToPending(t *testing.T) {
	var setStatus string
	fs := &fakeStore{
		getBuyerProfileFn: func(context.Context, string) (store.BuyerProfile, error) {
			return store.BuyerProfile{UserID: "usr_buyer"}, nil
		},
		setVerificationStatusFn: func(_ context.Context, _ string, status string) error {
			setStatus = status
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.RequestVerification(context.Background(), Session{UserID: "usr_buyer"}, VerificationRequestInput{Notes: "ID attached"}, nil, "")
	if err != nil {
		t.Fatalf("request verification: %v", err)
	}
	if payload["status"] != "pending" {
		t.Fatalf("expected pending request, got %v", payload["status"])
	}
	if setStatus != "pending" {
		t.Fatalf("expected profile moved to pending, got %q", setStatus)
	}
}

func TestReviewVerificationAdminOnly(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.ReviewVerification(context.Background(), Session{UserID: "usr_buyer", Role: "buyer"}, "vrf_1", ReviewVerificationInput{Status: "verified"})
	assertDomainCode(t, err, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS")
}

func TestReviewVerificationOnlyPendingRequests(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.ReviewVerification(context.Background(), Session{UserID: "usr_admin", Role: "admin"}, "vrf_1", ReviewVerificationInput{Status: "verified"})
	assertDomainCode(t, err, http.StatusConflict, "INVALID_STATUS")
}

func TestReviewVerificationRejectionResetsProfile(t *testing.T) {
	var setStatus string
	fs := &fakeStore{
		reviewVerificationFn: func(context.Context, string, string, string) (string, error) {
			return "usr_buyer", nil
		},
		setVerificationStatusFn: func(_ context.Context, _ string, status string) error {
			setStatus = status
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.ReviewVerification(context.Background(), Session{UserID: "usr_admin", Role: "admin"}, "vrf_1", ReviewVerificationInput{Status: "rejected"})
	if err != nil {
		t.Fatalf("review verification: %v", err)
	}
	if payload["status"] != "rejected" {
		t.Fatalf("expected rejected, got %v", payload["status"])
	}
	if setStatus != "unverified" {
		t.Fatalf("expected profile reset to unverified, got %q", setStatus)
	}
}
