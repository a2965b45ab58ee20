package app

import (
	"context"
	"log"
	"time"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/auth"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/authpw"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/config"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/email"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/export"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/revisions"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/search"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/session"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/storage"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/util"
)

type Session struct {
	Token            string
	RefreshToken     string
	UserID           string
	UserName         string
	Email            string
	Role             string
	MembershipStatus string
	TeacherVerified  bool
	JTI              string
	ExpiresAt        time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	UpdateUserVerificationToken(context.Context, string, string, time.Time) error
	VerifyUserEmail(context.Context, string) error
	UpdateUserPassword(context.Context, string, string) error
	CreatePasswordReset(context.Context, string, string, time.Time) error
	GetPasswordReset(context.Context, string) (string, error)
	MarkPasswordResetUsed(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	GetBuyerProfile(context.Context, string) (store.BuyerProfile, error)
	ListCompletedBuyerProfiles(context.Context) ([]store.BuyerProfile, error)
	UpsertBuyerProfile(context.Context, store.BuyerProfile) error
	SetOnboardingCompleted(context.Context, string) error
	SetVerificationStatus(context.Context, string, string) error
	InsertVerificationRequest(context.Context, store.VerificationRequest) error
	GetVerificationForBuyer(context.Context, string) (store.VerificationRequest, error)
	ReviewVerification(context.Context, string, string, string) (string, error)

	InsertListing(context.Context, store.Listing) error
	GetListing(context.Context, string) (store.Listing, error)
	UpdateListing(context.Context, store.Listing) (bool, error)
	SubmitListing(context.Context, string, string) (bool, error)
	ReviewListing(context.Context, string, string, string) (bool, error)
	DeleteListing(context.Context, string, string) (bool, error)
	ListApprovedListings(context.Context) ([]store.Listing, error)
	ListListingsBySeller(context.Context, string) ([]store.Listing, error)
	ListListingsByStatus(context.Context, string) ([]store.Listing, error)
	SignNDA(context.Context, store.ListingNDA) error
	HasSignedNDA(context.Context, string, string) (bool, error)

	InsertLOI(context.Context, store.LOIOffer) error
	GetLOI(context.Context, string) (store.LOIOffer, error)
	ListLOIsForUser(context.Context, string) ([]store.LOIOffer, error)
	UpdateLOITerms(context.Context, store.LOIOffer) (bool, error)
	MarkLOISent(context.Context, string, string) (bool, error)
	RespondLOI(context.Context, string, string, string, string) (bool, error)
	DeleteLOI(context.Context, string, string) (bool, error)

	InsertEscrow(context.Context, store.EscrowTransaction) error
	GetEscrow(context.Context, string) (store.EscrowTransaction, error)
	GetEscrowByLOI(context.Context, string) (store.EscrowTransaction, error)
	ListEscrowsForUser(context.Context, string) ([]store.EscrowTransaction, error)
	MarkEscrowFunded(context.Context, string, string, string) (bool, error)
	MarkEscrowReleased(context.Context, string) (bool, error)
	CreateChecklistWithTasks(context.Context, store.MigrationChecklist, []store.MigrationTask) error
	GetChecklistByEscrow(context.Context, string) (store.MigrationChecklist, error)
	ListTasks(context.Context, string) ([]store.MigrationTask, error)
	GetTaskContext(context.Context, string) (store.TaskContext, error)
	UpdateTaskStatus(context.Context, string, string) (bool, error)
	ConfirmTask(context.Context, string, bool) (store.MigrationTask, bool, error)
	DeleteTask(context.Context, string) (bool, error)

	EnsureThread(context.Context, store.MessageThread) (store.MessageThread, error)
	GetThread(context.Context, string) (store.MessageThread, error)
	ListThreadsForUser(context.Context, string) ([]store.MessageThread, error)
	InsertMessage(context.Context, store.ThreadMessage, bool) error
	ListMessages(context.Context, string) ([]store.ThreadMessage, error)
	MarkThreadRead(context.Context, string, bool) error
	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string, bool) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string) (bool, error)
	MarkAllNotificationsRead(context.Context, string) error
	InsertForumPost(context.Context, store.ForumPost) error
	GetForumPost(context.Context, string) (store.ForumPost, error)
	ListForumPosts(context.Context, string) ([]store.ForumPost, error)
	InsertForumReply(context.Context, store.ForumReply) error
	ListForumReplies(context.Context, string) ([]store.ForumReply, error)
}

// sessionStore holds refresh sessions. The Redis store keeps the full user
// alongside the token so Refresh works without a database round trip; the
// Postgres fallback joins users on lookup instead.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type pgSessions struct {
	store *store.PostgresStore
}

func (p pgSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p pgSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p pgSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexListing(listing search.ListingRecord)
	IndexPost(post search.PostRecord)
	DeleteListing(id string)
	ReindexAllFromPG(ctx context.Context)
}

type revisionService interface {
	EnsureListingRepo(listingID string, initial revisions.Snapshot, author string) error
	Commit(listingID string, snapshot revisions.Snapshot, author, message string) (revisions.RevisionInfo, error)
	History(listingID string, limit int) ([]revisions.RevisionInfo, error)
	GetSnapshotByHash(listingID, hash string) (revisions.Snapshot, error)
}

type exportService interface {
	ExportLOI(data export.LOIData, format export.Format) (*export.Result, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service
	email     *email.Service
	search    searchService
	revisions revisionService
	storage   *storage.Service
	export    exportService
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchSvc *search.Service, revisionSvc *revisions.Service, storageSvc *storage.Service, emailSvc *email.Service) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  pgSessions{store: dataStore},
		passwords: authpw.NewService(dataStore),
		email:     emailSvc,
		search:    searchSvc,
		revisions: revisionSvc,
		storage:   storageSvc,
		export:    export.NewService(),
	}
}

// NewWithSessionStore is New with refresh sessions kept in Redis instead of
// Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, searchSvc *search.Service, revisionSvc *revisions.Service, storageSvc *storage.Service, emailSvc *email.Service, sessions *session.RedisStore) *Service {
	svc := New(cfg, dataStore, searchSvc, revisionSvc, storageSvc, emailSvc)
	svc.sessions = sessions
	return svc
}

func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.passwords
}

// sendVerificationMail delivers the email-verification link when SMTP is
// configured. The web origin doubles as the link base.
func (s *Service) sendVerificationMail(to, userName, token string) {
	if !s.SMTPConfigured() || to == "" || token == "" {
		return
	}
	url := s.cfg.CORSOrigin + "/verify-email?token=" + token
	go func() {
		if err := s.email.SendVerificationEmail(to, userName, url); err != nil {
			log.Printf(`{"level":"warn","msg":"verification email failed","to":%q,"error":%q}`, to, err.Error())
		}
	}()
}

func (s *Service) sendResetMail(to, userName, token string) {
	if !s.SMTPConfigured() || to == "" || token == "" {
		return
	}
	url := s.cfg.CORSOrigin + "/reset-password?token=" + token
	go func() {
		if err := s.email.SendPasswordResetEmail(to, userName, url); err != nil {
			log.Printf(`{"level":"warn","msg":"reset email failed","to":%q,"error":%q}`, to, err.Error())
		}
	}()
}

// SessionForUser issues a fresh token pair after a successful sign-in.
func (s *Service) SessionForUser(ctx context.Context, user store.User) (Session, error) {
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:            token,
		RefreshToken:     refresh,
		UserID:           user.ID,
		UserName:         user.DisplayName,
		Email:            user.Email,
		Role:             user.Role,
		MembershipStatus: user.MembershipStatus,
		TeacherVerified:  user.TeacherVerified,
		JTI:              jti,
		ExpiresAt:        expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:            token,
		UserID:           user.ID,
		UserName:         user.DisplayName,
		Email:            user.Email,
		Role:             user.Role,
		MembershipStatus: user.MembershipStatus,
		TeacherVerified:  user.TeacherVerified,
		JTI:              claims.JTI,
		ExpiresAt:        time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// notify records an in-app notification. Failures are logged, never
// propagated; notifications ride along with the primary write.
func (s *Service) notify(ctx context.Context, userID, kind, title, body, referenceID string) {
	if userID == "" {
		return
	}
	err := s.store.InsertNotification(ctx, store.Notification{
		ID:          util.NewID("ntf"),
		UserID:      userID,
		Kind:        kind,
		Title:       title,
		Body:        body,
		ReferenceID: referenceID,
	})
	if err != nil {
		log.Printf(`{"level":"warn","msg":"notification insert failed","user":%q,"kind":%q,"error":%q}`, userID, kind, err.Error())
	}
}

// sendOfferMail delivers an offer lifecycle email when SMTP is configured.
func (s *Service) sendOfferMail(to, userName, listingTitle, subject, detail string) {
	if !s.SMTPConfigured() || to == "" {
		return
	}
	go func() {
		if err := s.email.SendOfferEmail(to, userName, listingTitle, subject, detail); err != nil {
			log.Printf(`{"level":"warn","msg":"offer email failed","to":%q,"error":%q}`, to, err.Error())
		}
	}()
}
