// Package export renders letters of intent to PDF and DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// LOIData is the offer content rendered into the letter.
type LOIData struct {
	ListingTitle     string
	BuyerName        string
	SellerName       string
	Status           string
	OfferPrice       int64
	CashAmount       int64
	EarnoutAmount    int64
	DueDiligenceDays int
	ExclusivityDays  int
	ExpirationDate   time.Time
	Conditions       []string
	CreatedAt        time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
