package store

import (
	"context"
	"fmt"
	"math"
)

// RevenueMultiple derives the asking-price-to-revenue ratio, rounded to two
// decimals. Zero when either input is not positive.
func RevenueMultiple(askingPrice, ttmRevenue int64) float64 {
	if askingPrice <= 0 || ttmRevenue <= 0 {
		return 0
	}
	return math.Round(float64(askingPrice)/float64(ttmRevenue)*100) / 100
}

const listingColumns = `
	id, seller_id, title, description, business_type, geography, status,
	asking_price, ttm_revenue, ttm_profit, revenue_multiple,
	COALESCE(business_url, ''), COALESCE(brand_name, ''), COALESCE(rejection_reason, ''),
	created_at, updated_at
`

func scanListing(row interface{ Scan(...any) error }) (Listing, error) {
	var item Listing
	err := row.Scan(
		&item.ID,
		&item.SellerID,
		&item.Title,
		&item.Description,
		&item.BusinessType,
		&item.Geography,
		&item.Status,
		&item.AskingPrice,
		&item.TTMRevenue,
		&item.TTMProfit,
		&item.RevenueMultiple,
		&item.BusinessURL,
		&item.BrandName,
		&item.RejectionReason,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertListing(ctx context.Context, item Listing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (id, seller_id, title, description, business_type, geography, status, asking_price, ttm_revenue, ttm_profit, revenue_multiple, business_url, brand_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''))
	`, item.ID, item.SellerID, item.Title, item.Description, item.BusinessType, item.Geography, item.Status,
		item.AskingPrice, item.TTMRevenue, item.TTMProfit, RevenueMultiple(item.AskingPrice, item.TTMRevenue),
		item.BusinessURL, item.BrandName)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetListing(ctx context.Context, listingID string) (Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=$1`, listingID)
	return scanListing(row)
}

// UpdateListing rewrites the mutable listing fields and recomputes the
// revenue multiple inside the same statement. Rejected listings stay frozen.
func (s *PostgresStore) UpdateListing(ctx context.Context, item Listing) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE listings
		SET title=$3, description=$4, business_type=$5, geography=$6,
			asking_price=$7, ttm_revenue=$8, ttm_profit=$9, revenue_multiple=$10,
			business_url=NULLIF($11, ''), brand_name=NULLIF($12, ''), updated_at=NOW()
		WHERE id=$1 AND seller_id=$2 AND status <> 'rejected'
	`, item.ID, item.SellerID, item.Title, item.Description, item.BusinessType, item.Geography,
		item.AskingPrice, item.TTMRevenue, item.TTMProfit, RevenueMultiple(item.AskingPrice, item.TTMRevenue),
		item.BusinessURL, item.BrandName)
	if err != nil {
		return false, fmt.Errorf("update listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update listing rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SubmitListing(ctx context.Context, listingID, sellerID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE listings SET status='submitted', updated_at=NOW()
		WHERE id=$1 AND seller_id=$2 AND status='draft'
	`, listingID, sellerID)
	if err != nil {
		return false, fmt.Errorf("submit listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("submit listing rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ReviewListing(ctx context.Context, listingID, status, reason string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE listings SET status=$2, rejection_reason=NULLIF($3, ''), updated_at=NOW()
		WHERE id=$1 AND status='submitted'
	`, listingID, status, reason)
	if err != nil {
		return false, fmt.Errorf("review listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("review listing rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteListing(ctx context.Context, listingID, sellerID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM listings WHERE id=$1 AND seller_id=$2 AND status='draft'
	`, listingID, sellerID)
	if err != nil {
		return false, fmt.Errorf("delete listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete listing rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListApprovedListings(ctx context.Context) ([]Listing, error) {
	return s.listListings(ctx, `SELECT `+listingColumns+` FROM listings WHERE status='approved' ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListListingsBySeller(ctx context.Context, sellerID string) ([]Listing, error) {
	return s.listListings(ctx, `SELECT `+listingColumns+` FROM listings WHERE seller_id=$1 ORDER BY created_at DESC`, sellerID)
}

func (s *PostgresStore) ListListingsByStatus(ctx context.Context, status string) ([]Listing, error) {
	return s.listListings(ctx, `SELECT `+listingColumns+` FROM listings WHERE status=$1 ORDER BY created_at ASC`, status)
}

func (s *PostgresStore) listListings(ctx context.Context, query string, args ...any) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	items := make([]Listing, 0)
	for rows.Next() {
		item, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return items, nil
}

// ── NDAs ──

func (s *PostgresStore) SignNDA(ctx context.Context, nda ListingNDA) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listing_ndas (listing_id, buyer_id, document_key)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (listing_id, buyer_id) DO NOTHING
	`, nda.ListingID, nda.BuyerID, nda.DocumentKey)
	if err != nil {
		return fmt.Errorf("sign nda: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasSignedNDA(ctx context.Context, listingID, buyerID string) (bool, error) {
	var signed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM listing_ndas WHERE listing_id=$1 AND buyer_id=$2)
	`, listingID, buyerID).Scan(&signed)
	if err != nil {
		return false, fmt.Errorf("check nda: %w", err)
	}
	return signed, nil
}
