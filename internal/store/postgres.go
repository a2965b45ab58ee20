package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate reports a unique-constraint violation in a way callers can
// translate to a conflict response.
var ErrDuplicate = errors.New("duplicate record")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// String slices are stored as jsonb columns.
func encodeStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	encoded, _ := json.Marshal(values)
	return string(encoded)
}

func decodeStrings(raw []byte) []string {
	values := []string{}
	_ = json.Unmarshal(raw, &values)
	return values
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, role, membership_status, teacher_verified, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
	`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role, user.MembershipStatus, user.TeacherVerified, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, role, membership_status, teacher_verified, is_email_verified, COALESCE(verification_token, ''), verification_expires_at, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.MembershipStatus,
		&user.TeacherVerified,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, role, membership_status, teacher_verified, is_email_verified, COALESCE(verification_token, ''), verification_expires_at, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.MembershipStatus,
		&user.TeacherVerified,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return errors.New("invalid or expired verification token")
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, used_at=NULL
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ── Refresh sessions / token revocation ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.email, u.display_name, u.role, u.membership_status, u.teacher_verified
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Email, &user.DisplayName, &user.Role, &user.MembershipStatus, &user.TeacherVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Buyer profiles ──

func (s *PostgresStore) GetBuyerProfile(ctx context.Context, userID string) (BuyerProfile, error) {
	var profile BuyerProfile
	var industries, regions []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, industries, regions, budget_min, budget_max, onboarding_completed, verification_status, updated_at
		FROM buyer_profiles
		WHERE user_id=$1
	`, userID).Scan(
		&profile.UserID,
		&industries,
		&regions,
		&profile.BudgetMin,
		&profile.BudgetMax,
		&profile.OnboardingCompleted,
		&profile.VerificationStatus,
		&profile.UpdatedAt,
	)
	if err != nil {
		return BuyerProfile{}, err
	}
	profile.Industries = decodeStrings(industries)
	profile.Regions = decodeStrings(regions)
	return profile, nil
}

func (s *PostgresStore) UpsertBuyerProfile(ctx context.Context, profile BuyerProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO buyer_profiles (user_id, industries, regions, budget_min, budget_max, onboarding_completed, verification_status)
		VALUES ($1, $2::jsonb, $3::jsonb, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			industries=EXCLUDED.industries,
			regions=EXCLUDED.regions,
			budget_min=EXCLUDED.budget_min,
			budget_max=EXCLUDED.budget_max,
			onboarding_completed=EXCLUDED.onboarding_completed,
			updated_at=NOW()
	`, profile.UserID, encodeStrings(profile.Industries), encodeStrings(profile.Regions), profile.BudgetMin, profile.BudgetMax, profile.OnboardingCompleted, profile.VerificationStatus)
	if err != nil {
		return fmt.Errorf("upsert buyer profile: %w", err)
	}
	return nil
}

// ListCompletedBuyerProfiles returns the profiles eligible for match
// scoring: onboarding done, oldest first for stable ordering.
func (s *PostgresStore) ListCompletedBuyerProfiles(ctx context.Context) ([]BuyerProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, industries, regions, budget_min, budget_max, onboarding_completed, verification_status, updated_at
		FROM buyer_profiles
		WHERE onboarding_completed=TRUE
		ORDER BY updated_at ASC, user_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list buyer profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]BuyerProfile, 0)
	for rows.Next() {
		var profile BuyerProfile
		var industries, regions []byte
		if err := rows.Scan(
			&profile.UserID,
			&industries,
			&regions,
			&profile.BudgetMin,
			&profile.BudgetMax,
			&profile.OnboardingCompleted,
			&profile.VerificationStatus,
			&profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan buyer profile: %w", err)
		}
		profile.Industries = decodeStrings(industries)
		profile.Regions = decodeStrings(regions)
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buyer profiles: %w", err)
	}
	return profiles, nil
}

func (s *PostgresStore) SetOnboardingCompleted(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE buyer_profiles SET onboarding_completed=TRUE, updated_at=NOW() WHERE user_id=$1
	`, userID)
	if err != nil {
		return fmt.Errorf("set onboarding completed: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetVerificationStatus(ctx context.Context, userID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE buyer_profiles SET verification_status=$2, updated_at=NOW() WHERE user_id=$1
	`, userID, status)
	if err != nil {
		return fmt.Errorf("set verification status: %w", err)
	}
	return nil
}

// ── Verification requests ──

func (s *PostgresStore) InsertVerificationRequest(ctx context.Context, request VerificationRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_requests (id, buyer_id, status, document_key, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, request.ID, request.BuyerID, request.Status, request.DocumentKey, request.Notes)
	if err != nil {
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVerificationForBuyer(ctx context.Context, buyerID string) (VerificationRequest, error) {
	var request VerificationRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, status, document_key, notes, COALESCE(reviewed_by, ''), reviewed_at, created_at
		FROM verification_requests
		WHERE buyer_id=$1
		ORDER BY created_at DESC
		LIMIT 1
	`, buyerID).Scan(
		&request.ID,
		&request.BuyerID,
		&request.Status,
		&request.DocumentKey,
		&request.Notes,
		&request.ReviewedBy,
		&request.ReviewedAt,
		&request.CreatedAt,
	)
	if err != nil {
		return VerificationRequest{}, err
	}
	return request, nil
}

func (s *PostgresStore) ReviewVerification(ctx context.Context, requestID, status, reviewedBy string) (string, error) {
	var buyerID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE verification_requests
		SET status=$2, reviewed_by=$3, reviewed_at=NOW()
		WHERE id=$1 AND status='pending'
		RETURNING buyer_id
	`, requestID, status, reviewedBy).Scan(&buyerID)
	if err != nil {
		return "", err
	}
	return buyerID, nil
}
