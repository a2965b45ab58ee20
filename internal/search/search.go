package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultListing ResultType = "listing"
	ResultPost    ResultType = "post"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type         ResultType `json:"type"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet"`
	BusinessType string     `json:"businessType,omitempty"`
	Geography    string     `json:"geography,omitempty"`
	Category     string     `json:"category,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text               string
	FilterType         ResultType // empty = all types
	FilterBusinessType string
	FilterGeography    string
	Limit              int
	Offset             int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ListingRecord is the data we index for an approved listing.
type ListingRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	BusinessType string `json:"businessType"`
	Geography    string `json:"geography"`
	Status       string `json:"status"`
}

// PostRecord is the data we index for a forum post.
type PostRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}
