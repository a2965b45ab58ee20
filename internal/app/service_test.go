package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/authpw"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/config"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
)

// fakeStore implements dataStore with overridable function fields. Methods
// without an override return zero values; getters report sql.ErrNoRows the
// way the Postgres store does.
type fakeStore struct {
	pingFn func(context.Context) error

	createUserFn                  func(context.Context, store.User) error
	getUserByEmailFn              func(context.Context, string) (store.User, error)
	getUserByIDFn                 func(context.Context, string) (store.User, error)
	updateUserVerificationTokenFn func(context.Context, string, string, time.Time) error
	verifyUserEmailFn             func(context.Context, string) error
	updateUserPasswordFn          func(context.Context, string, string) error
	createPasswordResetFn         func(context.Context, string, string, time.Time) error
	getPasswordResetFn            func(context.Context, string) (string, error)
	markPasswordResetUsedFn       func(context.Context, string) error
	revokeAccessTokenFn           func(context.Context, string, time.Time) error
	isAccessTokenRevokedFn        func(context.Context, string) (bool, error)

	getBuyerProfileFn            func(context.Context, string) (store.BuyerProfile, error)
	listCompletedBuyerProfilesFn func(context.Context) ([]store.BuyerProfile, error)
	upsertBuyerProfileFn         func(context.Context, store.BuyerProfile) error
	setOnboardingCompletedFn     func(context.Context, string) error
	setVerificationStatusFn      func(context.Context, string, string) error
	insertVerificationRequestFn  func(context.Context, store.VerificationRequest) error
	getVerificationForBuyerFn    func(context.Context, string) (store.VerificationRequest, error)
	reviewVerificationFn         func(context.Context, string, string, string) (string, error)

	insertListingFn        func(context.Context, store.Listing) error
	getListingFn           func(context.Context, string) (store.Listing, error)
	updateListingFn        func(context.Context, store.Listing) (bool, error)
	submitListingFn        func(context.Context, string, string) (bool, error)
	reviewListingFn        func(context.Context, string, string, string) (bool, error)
	deleteListingFn        func(context.Context, string, string) (bool, error)
	listApprovedListingsFn func(context.Context) ([]store.Listing, error)
	listListingsBySellerFn func(context.Context, string) ([]store.Listing, error)
	listListingsByStatusFn func(context.Context, string) ([]store.Listing, error)
	signNDAFn              func(context.Context, store.ListingNDA) error
	hasSignedNDAFn         func(context.Context, string, string) (bool, error)

	insertLOIFn       func(context.Context, store.LOIOffer) error
	getLOIFn          func(context.Context, string) (store.LOIOffer, error)
	listLOIsForUserFn func(context.Context, string) ([]store.LOIOffer, error)
	updateLOITermsFn  func(context.Context, store.LOIOffer) (bool, error)
	markLOISentFn     func(context.Context, string, string) (bool, error)
	respondLOIFn      func(context.Context, string, string, string, string) (bool, error)
	deleteLOIFn       func(context.Context, string, string) (bool, error)

	insertEscrowFn             func(context.Context, store.EscrowTransaction) error
	getEscrowFn                func(context.Context, string) (store.EscrowTransaction, error)
	getEscrowByLOIFn           func(context.Context, string) (store.EscrowTransaction, error)
	listEscrowsForUserFn       func(context.Context, string) ([]store.EscrowTransaction, error)
	markEscrowFundedFn         func(context.Context, string, string, string) (bool, error)
	markEscrowReleasedFn       func(context.Context, string) (bool, error)
	createChecklistWithTasksFn func(context.Context, store.MigrationChecklist, []store.MigrationTask) error
	getChecklistByEscrowFn     func(context.Context, string) (store.MigrationChecklist, error)
	listTasksFn                func(context.Context, string) ([]store.MigrationTask, error)
	getTaskContextFn           func(context.Context, string) (store.TaskContext, error)
	updateTaskStatusFn         func(context.Context, string, string) (bool, error)
	confirmTaskFn              func(context.Context, string, bool) (store.MigrationTask, bool, error)
	deleteTaskFn               func(context.Context, string) (bool, error)

	ensureThreadFn             func(context.Context, store.MessageThread) (store.MessageThread, error)
	getThreadFn                func(context.Context, string) (store.MessageThread, error)
	listThreadsForUserFn       func(context.Context, string) ([]store.MessageThread, error)
	insertMessageFn            func(context.Context, store.ThreadMessage, bool) error
	listMessagesFn             func(context.Context, string) ([]store.ThreadMessage, error)
	markThreadReadFn           func(context.Context, string, bool) error
	insertNotificationFn       func(context.Context, store.Notification) error
	listNotificationsFn        func(context.Context, string, bool) ([]store.Notification, error)
	markNotificationReadFn     func(context.Context, string, string) (bool, error)
	markAllNotificationsReadFn func(context.Context, string) error
	insertForumPostFn          func(context.Context, store.ForumPost) error
	getForumPostFn             func(context.Context, string) (store.ForumPost, error)
	listForumPostsFn           func(context.Context, string) ([]store.ForumPost, error)
	insertForumReplyFn         func(context.Context, store.ForumReply) error
	listForumRepliesFn         func(context.Context, string) ([]store.ForumReply, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if f.updateUserVerificationTokenFn != nil {
		return f.updateUserVerificationTokenFn(ctx, userID, token, expiresAt)
	}
	return nil
}

func (f *fakeStore) VerifyUserEmail(ctx context.Context, token string) error {
	if f.verifyUserEmailFn != nil {
		return f.verifyUserEmailFn(ctx, token)
	}
	return nil
}

func (f *fakeStore) UpdateUserPassword(ctx context.Context, userID, hash string) error {
	if f.updateUserPasswordFn != nil {
		return f.updateUserPasswordFn(ctx, userID, hash)
	}
	return nil
}

func (f *fakeStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if f.createPasswordResetFn != nil {
		return f.createPasswordResetFn(ctx, userID, token, expiresAt)
	}
	return nil
}

func (f *fakeStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if f.getPasswordResetFn != nil {
		return f.getPasswordResetFn(ctx, token)
	}
	return "", sql.ErrNoRows
}

func (f *fakeStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if f.markPasswordResetUsedFn != nil {
		return f.markPasswordResetUsedFn(ctx, token)
	}
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, expiresAt)
	}
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) GetBuyerProfile(ctx context.Context, userID string) (store.BuyerProfile, error) {
	if f.getBuyerProfileFn != nil {
		return f.getBuyerProfileFn(ctx, userID)
	}
	return store.BuyerProfile{}, sql.ErrNoRows
}

func (f *fakeStore) ListCompletedBuyerProfiles(ctx context.Context) ([]store.BuyerProfile, error) {
	if f.listCompletedBuyerProfilesFn != nil {
		return f.listCompletedBuyerProfilesFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) UpsertBuyerProfile(ctx context.Context, profile store.BuyerProfile) error {
	if f.upsertBuyerProfileFn != nil {
		return f.upsertBuyerProfileFn(ctx, profile)
	}
	return nil
}

func (f *fakeStore) SetOnboardingCompleted(ctx context.Context, userID string) error {
	if f.setOnboardingCompletedFn != nil {
		return f.setOnboardingCompletedFn(ctx, userID)
	}
	return nil
}

func (f *fakeStore) SetVerificationStatus(ctx context.Context, userID, status string) error {
	if f.setVerificationStatusFn != nil {
		return f.setVerificationStatusFn(ctx, userID, status)
	}
	return nil
}

func (f *fakeStore) InsertVerificationRequest(ctx context.Context, req store.VerificationRequest) error {
	if f.insertVerificationRequestFn != nil {
		return f.insertVerificationRequestFn(ctx, req)
	}
	return nil
}

func (f *fakeStore) GetVerificationForBuyer(ctx context.Context, buyerID string) (store.VerificationRequest, error) {
	if f.getVerificationForBuyerFn != nil {
		return f.getVerificationForBuyerFn(ctx, buyerID)
	}
	return store.VerificationRequest{}, sql.ErrNoRows
}

func (f *fakeStore) ReviewVerification(ctx context.Context, requestID, status, reviewerID string) (string, error) {
	if f.reviewVerificationFn != nil {
		return f.reviewVerificationFn(ctx, requestID, status, reviewerID)
	}
	return "", sql.ErrNoRows
}

func (f *fakeStore) InsertListing(ctx context.Context, item store.Listing) error {
	if f.insertListingFn != nil {
		return f.insertListingFn(ctx, item)
	}
	return nil
}

func (f *fakeStore) GetListing(ctx context.Context, id string) (store.Listing, error) {
	if f.getListingFn != nil {
		return f.getListingFn(ctx, id)
	}
	return store.Listing{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateListing(ctx context.Context, item store.Listing) (bool, error) {
	if f.updateListingFn != nil {
		return f.updateListingFn(ctx, item)
	}
	return false, nil
}

func (f *fakeStore) SubmitListing(ctx context.Context, id, sellerID string) (bool, error) {
	if f.submitListingFn != nil {
		return f.submitListingFn(ctx, id, sellerID)
	}
	return false, nil
}

func (f *fakeStore) ReviewListing(ctx context.Context, id, status, reason string) (bool, error) {
	if f.reviewListingFn != nil {
		return f.reviewListingFn(ctx, id, status, reason)
	}
	return false, nil
}

func (f *fakeStore) DeleteListing(ctx context.Context, id, sellerID string) (bool, error) {
	if f.deleteListingFn != nil {
		return f.deleteListingFn(ctx, id, sellerID)
	}
	return false, nil
}

func (f *fakeStore) ListApprovedListings(ctx context.Context) ([]store.Listing, error) {
	if f.listApprovedListingsFn != nil {
		return f.listApprovedListingsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) ListListingsBySeller(ctx context.Context, sellerID string) ([]store.Listing, error) {
	if f.listListingsBySellerFn != nil {
		return f.listListingsBySellerFn(ctx, sellerID)
	}
	return nil, nil
}

func (f *fakeStore) ListListingsByStatus(ctx context.Context, status string) ([]store.Listing, error) {
	if f.listListingsByStatusFn != nil {
		return f.listListingsByStatusFn(ctx, status)
	}
	return nil, nil
}

func (f *fakeStore) SignNDA(ctx context.Context, nda store.ListingNDA) error {
	if f.signNDAFn != nil {
		return f.signNDAFn(ctx, nda)
	}
	return nil
}

func (f *fakeStore) HasSignedNDA(ctx context.Context, listingID, buyerID string) (bool, error) {
	if f.hasSignedNDAFn != nil {
		return f.hasSignedNDAFn(ctx, listingID, buyerID)
	}
	return false, nil
}

func (f *fakeStore) InsertLOI(ctx context.Context, offer store.LOIOffer) error {
	if f.insertLOIFn != nil {
		return f.insertLOIFn(ctx, offer)
	}
	return nil
}

func (f *fakeStore) GetLOI(ctx context.Context, id string) (store.LOIOffer, error) {
	if f.getLOIFn != nil {
		return f.getLOIFn(ctx, id)
	}
	return store.LOIOffer{}, sql.ErrNoRows
}

func (f *fakeStore) ListLOIsForUser(ctx context.Context, userID string) ([]store.LOIOffer, error) {
	if f.listLOIsForUserFn != nil {
		return f.listLOIsForUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateLOITerms(ctx context.Context, offer store.LOIOffer) (bool, error) {
	if f.updateLOITermsFn != nil {
		return f.updateLOITermsFn(ctx, offer)
	}
	return false, nil
}

func (f *fakeStore) MarkLOISent(ctx context.Context, id, buyerID string) (bool, error) {
	if f.markLOISentFn != nil {
		return f.markLOISentFn(ctx, id, buyerID)
	}
	return false, nil
}

func (f *fakeStore) RespondLOI(ctx context.Context, id, sellerID, status, notes string) (bool, error) {
	if f.respondLOIFn != nil {
		return f.respondLOIFn(ctx, id, sellerID, status, notes)
	}
	return false, nil
}

func (f *fakeStore) DeleteLOI(ctx context.Context, id, buyerID string) (bool, error) {
	if f.deleteLOIFn != nil {
		return f.deleteLOIFn(ctx, id, buyerID)
	}
	return false, nil
}

func (f *fakeStore) InsertEscrow(ctx context.Context, escrow store.EscrowTransaction) error {
	if f.insertEscrowFn != nil {
		return f.insertEscrowFn(ctx, escrow)
	}
	return nil
}

func (f *fakeStore) GetEscrow(ctx context.Context, id string) (store.EscrowTransaction, error) {
	if f.getEscrowFn != nil {
		return f.getEscrowFn(ctx, id)
	}
	return store.EscrowTransaction{}, sql.ErrNoRows
}

func (f *fakeStore) GetEscrowByLOI(ctx context.Context, loiID string) (store.EscrowTransaction, error) {
	if f.getEscrowByLOIFn != nil {
		return f.getEscrowByLOIFn(ctx, loiID)
	}
	return store.EscrowTransaction{}, sql.ErrNoRows
}

func (f *fakeStore) ListEscrowsForUser(ctx context.Context, userID string) ([]store.EscrowTransaction, error) {
	if f.listEscrowsForUserFn != nil {
		return f.listEscrowsForUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) MarkEscrowFunded(ctx context.Context, id, provider, referenceID string) (bool, error) {
	if f.markEscrowFundedFn != nil {
		return f.markEscrowFundedFn(ctx, id, provider, referenceID)
	}
	return false, nil
}

func (f *fakeStore) MarkEscrowReleased(ctx context.Context, id string) (bool, error) {
	if f.markEscrowReleasedFn != nil {
		return f.markEscrowReleasedFn(ctx, id)
	}
	return false, nil
}

func (f *fakeStore) CreateChecklistWithTasks(ctx context.Context, checklist store.MigrationChecklist, tasks []store.MigrationTask) error {
	if f.createChecklistWithTasksFn != nil {
		return f.createChecklistWithTasksFn(ctx, checklist, tasks)
	}
	return nil
}

func (f *fakeStore) GetChecklistByEscrow(ctx context.Context, escrowID string) (store.MigrationChecklist, error) {
	if f.getChecklistByEscrowFn != nil {
		return f.getChecklistByEscrowFn(ctx, escrowID)
	}
	return store.MigrationChecklist{}, sql.ErrNoRows
}

func (f *fakeStore) ListTasks(ctx context.Context, checklistID string) ([]store.MigrationTask, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, checklistID)
	}
	return nil, nil
}

func (f *fakeStore) GetTaskContext(ctx context.Context, taskID string) (store.TaskContext, error) {
	if f.getTaskContextFn != nil {
		return f.getTaskContextFn(ctx, taskID)
	}
	return store.TaskContext{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateTaskStatus(ctx context.Context, taskID, status string) (bool, error) {
	if f.updateTaskStatusFn != nil {
		return f.updateTaskStatusFn(ctx, taskID, status)
	}
	return false, nil
}

func (f *fakeStore) ConfirmTask(ctx context.Context, taskID string, asBuyer bool) (store.MigrationTask, bool, error) {
	if f.confirmTaskFn != nil {
		return f.confirmTaskFn(ctx, taskID, asBuyer)
	}
	return store.MigrationTask{}, false, sql.ErrNoRows
}

func (f *fakeStore) DeleteTask(ctx context.Context, taskID string) (bool, error) {
	if f.deleteTaskFn != nil {
		return f.deleteTaskFn(ctx, taskID)
	}
	return false, nil
}

func (f *fakeStore) EnsureThread(ctx context.Context, thread store.MessageThread) (store.MessageThread, error) {
	if f.ensureThreadFn != nil {
		return f.ensureThreadFn(ctx, thread)
	}
	return thread, nil
}

func (f *fakeStore) GetThread(ctx context.Context, id string) (store.MessageThread, error) {
	if f.getThreadFn != nil {
		return f.getThreadFn(ctx, id)
	}
	return store.MessageThread{}, sql.ErrNoRows
}

func (f *fakeStore) ListThreadsForUser(ctx context.Context, userID string) ([]store.MessageThread, error) {
	if f.listThreadsForUserFn != nil {
		return f.listThreadsForUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, message store.ThreadMessage, senderIsBuyer bool) error {
	if f.insertMessageFn != nil {
		return f.insertMessageFn(ctx, message, senderIsBuyer)
	}
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, threadID string) ([]store.ThreadMessage, error) {
	if f.listMessagesFn != nil {
		return f.listMessagesFn(ctx, threadID)
	}
	return nil, nil
}

func (f *fakeStore) MarkThreadRead(ctx context.Context, threadID string, asBuyer bool) error {
	if f.markThreadReadFn != nil {
		return f.markThreadReadFn(ctx, threadID, asBuyer)
	}
	return nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, notification store.Notification) error {
	if f.insertNotificationFn != nil {
		return f.insertNotificationFn(ctx, notification)
	}
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]store.Notification, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, userID, unreadOnly)
	}
	return nil, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, id, userID string) (bool, error) {
	if f.markNotificationReadFn != nil {
		return f.markNotificationReadFn(ctx, id, userID)
	}
	return false, nil
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if f.markAllNotificationsReadFn != nil {
		return f.markAllNotificationsReadFn(ctx, userID)
	}
	return nil
}

func (f *fakeStore) InsertForumPost(ctx context.Context, post store.ForumPost) error {
	if f.insertForumPostFn != nil {
		return f.insertForumPostFn(ctx, post)
	}
	return nil
}

func (f *fakeStore) GetForumPost(ctx context.Context, id string) (store.ForumPost, error) {
	if f.getForumPostFn != nil {
		return f.getForumPostFn(ctx, id)
	}
	return store.ForumPost{}, sql.ErrNoRows
}

func (f *fakeStore) ListForumPosts(ctx context.Context, category string) ([]store.ForumPost, error) {
	if f.listForumPostsFn != nil {
		return f.listForumPostsFn(ctx, category)
	}
	return nil, nil
}

func (f *fakeStore) InsertForumReply(ctx context.Context, reply store.ForumReply) error {
	if f.insertForumReplyFn != nil {
		return f.insertForumReplyFn(ctx, reply)
	}
	return nil
}

func (f *fakeStore) ListForumReplies(ctx context.Context, postID string) ([]store.ForumReply, error) {
	if f.listForumRepliesFn != nil {
		return f.listForumRepliesFn(ctx, postID)
	}
	return nil, nil
}

// fakeSessions keeps refresh sessions in a map.
type fakeSessions struct {
	mu    sync.Mutex
	users map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{users: map[string]store.User{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, tokenHash)
	return nil
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:     fs,
		sessions:  newFakeSessions(),
		passwords: authpw.NewService(fs),
	}
}

func assertDomainCode(t *testing.T, err error, status int, code string) *DomainError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Status != status {
		t.Fatalf("expected status %d, got %d (%v)", status, domainErr.Status, domainErr)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, domainErr.Code, domainErr)
	}
	return domainErr
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Blair Buyer", Role: "buyer"}, nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.SessionForUser(context.Background(), store.User{ID: "usr_1", DisplayName: "Blair Buyer", Role: "buyer"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == session.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}

	if _, err := svc.Refresh(context.Background(), session.RefreshToken); err == nil {
		t.Fatalf("expected reused refresh token to be rejected")
	}
}

func TestSessionFromTokenRejectsRevokedJTI(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Blair Buyer", Role: "buyer"}, nil
		},
		isAccessTokenRevokedFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.SessionForUser(context.Background(), store.User{ID: "usr_1", DisplayName: "Blair Buyer", Role: "buyer"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	if _, err := svc.SessionFromToken(context.Background(), session.Token); err == nil {
		t.Fatalf("expected revoked token to be rejected")
	}
}
