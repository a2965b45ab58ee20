package export

import "fmt"

// Service renders letters of intent into downloadable documents.
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// ExportLOI generates a letter of intent in the requested format
func (s *Service) ExportLOI(data LOIData, format Format) (*Result, error) {
	html, err := RenderLOIHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := "Letter of Intent " + data.ListingTitle

	switch format {
	case FormatPDF:
		return exportPDF(html, title)
	case FormatDOCX:
		return exportDOCX(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
