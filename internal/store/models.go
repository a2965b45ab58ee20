package store

import "time"

type User struct {
	ID                    string
	Email                 string
	PasswordHash          string
	DisplayName           string
	Role                  string
	MembershipStatus      string
	TeacherVerified       bool
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type BuyerProfile struct {
	UserID              string
	Industries          []string
	Regions             []string
	BudgetMin           int64
	BudgetMax           int64
	OnboardingCompleted bool
	VerificationStatus  string
	UpdatedAt           time.Time
}

type Listing struct {
	ID              string
	SellerID        string
	Title           string
	Description     string
	BusinessType    string
	Geography       string
	Status          string
	AskingPrice     int64
	TTMRevenue      int64
	TTMProfit       int64
	RevenueMultiple float64
	BusinessURL     string
	BrandName       string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ListingNDA struct {
	ListingID   string
	BuyerID     string
	DocumentKey string
	SignedAt    time.Time
}

type VerificationRequest struct {
	ID          string
	BuyerID     string
	Status      string
	DocumentKey string
	Notes       string
	ReviewedBy  string
	ReviewedAt  *time.Time
	CreatedAt   time.Time
}

type LOIOffer struct {
	ID               string
	ListingID        string
	BuyerID          string
	SellerID         string
	Status           string
	OfferPrice       int64
	CashAmount       int64
	EarnoutAmount    int64
	DueDiligenceDays int
	ExclusivityDays  int
	ExpirationDate   time.Time
	Conditions       []string
	ResponseNotes    string
	SentAt           *time.Time
	RespondedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type EscrowTransaction struct {
	ID                 string
	LOIID              *string
	ListingID          string
	BuyerID            string
	SellerID           string
	Status             string
	EscrowAmount       int64
	PlatformFeePercent float64
	PlatformFeeAmount  int64
	BuyerTotalAmount   int64
	SellerNetAmount    int64
	Provider           string
	ReferenceID        string
	FundedAt           *time.Time
	ReleasedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type MigrationChecklist struct {
	ID          string
	EscrowID    string
	Status      string
	CompletedAt *time.Time
	CreatedAt   time.Time
}

type MigrationTask struct {
	ID              string
	ChecklistID     string
	Category        string
	Title           string
	Status          string
	BuyerConfirmed  bool
	SellerConfirmed bool
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaskContext carries the parent checklist and escrow parties alongside a
// task so the service can authorize without extra round trips.
type TaskContext struct {
	Task        MigrationTask
	ChecklistID string
	EscrowID    string
	BuyerID     string
	SellerID    string
}

type MessageThread struct {
	ID            string
	ListingID     string
	BuyerID       string
	SellerID      string
	BuyerUnread   int
	SellerUnread  int
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

type ThreadMessage struct {
	ID        string
	ThreadID  string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

type Notification struct {
	ID          string
	UserID      string
	Kind        string
	Title       string
	Body        string
	ReferenceID string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

type ForumPost struct {
	ID         string
	AuthorID   string
	AuthorName string
	Title      string
	Body       string
	Category   string
	ReplyCount int
	CreatedAt  time.Time
}

type ForumReply struct {
	ID         string
	PostID     string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}
