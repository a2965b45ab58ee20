package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
)

type mockUserStore struct {
	users         map[string]store.User
	emailIndex    map[string]string
	verifications map[string]store.User
	resets        map[string]struct {
		userID    string
		expiresAt time.Time
		used      bool
	}
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:         make(map[string]store.User),
		emailIndex:    make(map[string]string),
		verifications: make(map[string]store.User),
		resets: make(map[string]struct {
			userID    string
			expiresAt time.Time
			used      bool
		}),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	if _, ok := m.emailIndex[user.Email]; ok {
		return store.ErrDuplicate
	}
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	if user.VerificationToken != "" {
		m.verifications[user.VerificationToken] = user
	}
	return nil
}

func (m *mockUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if user, ok := m.users[userID]; ok {
		user.VerificationToken = token
		user.VerificationExpiresAt = &expiresAt
		m.users[userID] = user
		m.verifications[token] = user
	}
	return nil
}

func (m *mockUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	if user, ok := m.verifications[token]; ok {
		user.IsEmailVerified = true
		m.users[user.ID] = user
		m.emailIndex[user.Email] = user.ID
		return nil
	}
	return errors.New("invalid token")
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if user, ok := m.users[userID]; ok {
		user.PasswordHash = passwordHash
		m.users[userID] = user
		return nil
	}
	return errors.New("user not found")
}

func (m *mockUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = struct {
		userID    string
		expiresAt time.Time
		used      bool
	}{userID: userID, expiresAt: expiresAt, used: false}
	return nil
}

func (m *mockUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if reset, ok := m.resets[token]; ok && !reset.used && time.Now().Before(reset.expiresAt) {
		return reset.userID, nil
	}
	return "", errors.New("invalid or expired token")
}

func (m *mockUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if reset, ok := m.resets[token]; ok {
		reset.used = true
		m.resets[token] = reset
	}
	return nil
}

func TestSignUp(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "buyer@example.com",
		Password:    "password123",
		DisplayName: "Buyer One",
		Role:        "buyer",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if resp.UserID == "" {
		t.Error("expected non-empty user ID")
	}
	if resp.VerificationToken == "" {
		t.Error("expected a verification token")
	}
	if !resp.RequiresEmailVerify {
		t.Error("expected RequiresEmailVerify to be true")
	}
}

func TestSignUpDefaultsToBuyer(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)

	resp, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "someone@example.com",
		Password:    "password123",
		DisplayName: "Someone",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	user := mock.users[resp.UserID]
	if user.Role != "buyer" {
		t.Errorf("expected default role buyer, got %s", user.Role)
	}
	if user.MembershipStatus != "active" {
		t.Errorf("expected membership active, got %s", user.MembershipStatus)
	}
}

func TestSignUpRejectsUnknownRole(t *testing.T) {
	svc := NewService(newMockUserStore())

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "admin@example.com",
		Password:    "password123",
		DisplayName: "Admin",
		Role:        "admin",
	})
	if err == nil {
		t.Error("expected error for role admin, got nil")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	req := SignUpRequest{
		Email:       "dup@example.com",
		Password:    "password123",
		DisplayName: "First",
		Role:        "seller",
	}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := svc.SignUp(ctx, req); err == nil {
		t.Error("expected error for duplicate email, got nil")
	}
}

func TestSignUpShortPassword(t *testing.T) {
	svc := NewService(newMockUserStore())

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "short@example.com",
		Password:    "1234567",
		DisplayName: "Short",
	})
	if err == nil {
		t.Error("expected error for short password, got nil")
	}
}

func TestSignInBeforeVerification(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "unverified@example.com",
		Password:    "password123",
		DisplayName: "Unverified",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	resp, err := svc.SignIn(ctx, SignInRequest{Email: "unverified@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !resp.RequiresVerify {
		t.Error("expected RequiresVerify for unverified account")
	}
}

func TestVerifyEmailThenSignIn(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	signup, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "verified@example.com",
		Password:    "password123",
		DisplayName: "Verified",
		Role:        "seller",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if err := svc.VerifyEmail(ctx, signup.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	resp, err := svc.SignIn(ctx, SignInRequest{Email: "verified@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if resp.RequiresVerify {
		t.Error("expected RequiresVerify to be false after verification")
	}
	if resp.User.Role != "seller" {
		t.Errorf("expected role seller, got %s", resp.User.Role)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	signup, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "wrongpw@example.com",
		Password:    "password123",
		DisplayName: "Wrong",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := svc.VerifyEmail(ctx, signup.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "wrongpw@example.com", Password: "nope-nope"}); err == nil {
		t.Error("expected error for wrong password, got nil")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	signup, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "reset@example.com",
		Password:    "password123",
		DisplayName: "Reset",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := svc.VerifyEmail(ctx, signup.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	token, err := svc.RequestPasswordReset(ctx, "reset@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "newpassword456"}); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "reset@example.com", Password: "newpassword456"}); err != nil {
		t.Errorf("SignIn with new password failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "reset@example.com", Password: "password123"}); err == nil {
		t.Error("expected error for old password, got nil")
	}
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	svc := NewService(newMockUserStore())

	token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token != "" {
		t.Error("expected empty token for unknown email")
	}
}
