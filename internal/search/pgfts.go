package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across approved listings and forum posts
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultListing {
		listingWhere := fmt.Sprintf(
			"to_tsvector('english', l.title || ' ' || l.description) @@ %s AND l.status = 'approved'", tsQuery)
		if q.FilterBusinessType != "" {
			listingWhere += fmt.Sprintf(" AND l.business_type = $%d", argN)
			args = append(args, q.FilterBusinessType)
			argN++
		}
		if q.FilterGeography != "" {
			listingWhere += fmt.Sprintf(" AND l.geography = $%d", argN)
			args = append(args, q.FilterGeography)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'listing'::text AS type, l.id, l.title,
				ts_headline('english', coalesce(l.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				l.business_type, l.geography,
				''::text AS category,
				ts_rank(to_tsvector('english', l.title || ' ' || l.description), %s) AS rank
			FROM listings l
			WHERE %s`, tsQuery, tsQuery, listingWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultPost {
		postWhere := fmt.Sprintf("to_tsvector('english', fp.title || ' ' || fp.body) @@ %s", tsQuery)
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post'::text AS type, fp.id, fp.title,
				ts_headline('english', coalesce(fp.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS business_type, ''::text AS geography,
				fp.category,
				ts_rank(to_tsvector('english', fp.title || ' ' || fp.body), %s) AS rank
			FROM forum_posts fp
			WHERE %s`, tsQuery, tsQuery, postWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, business_type, geography, category
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.BusinessType, &r.Geography, &r.Category); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ListingRecord, []PostRecord, error) {
	listingRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, business_type, geography, status
		FROM listings
		WHERE status = 'approved'
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load listings: %w", err)
	}
	defer listingRows.Close()

	listings := make([]ListingRecord, 0)
	for listingRows.Next() {
		var l ListingRecord
		if err := listingRows.Scan(&l.ID, &l.Title, &l.Description, &l.BusinessType, &l.Geography, &l.Status); err != nil {
			return nil, nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := listingRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate listings: %w", err)
	}

	postRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, body, category
		FROM forum_posts
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load forum posts: %w", err)
	}
	defer postRows.Close()

	posts := make([]PostRecord, 0)
	for postRows.Next() {
		var post PostRecord
		if err := postRows.Scan(&post.ID, &post.Title, &post.Body, &post.Category); err != nil {
			return nil, nil, fmt.Errorf("scan forum post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := postRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate forum posts: %w", err)
	}

	return listings, posts, nil
}
