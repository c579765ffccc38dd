package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/m3rciful/newsmarket/internal/domain"
)

const (
	listingColumns = `id, seller_id, title, description, price, currency, photo_id, status, created_at, updated_at`
	offerColumns   = `id, listing_id, buyer_id, price, status, created_at, updated_at`
	dealColumns    = `id, listing_id, buyer_id, seller_id, offer_id, price, status, request_key, created_at, updated_at`

	liveDealIndex   = "deals_live_listing_uidx"
	requestKeyIndex = "deals_request_key_key"
	reviewDealIndex = "reviews_deal_id_key"
)

// InsertListing stores a pending listing.
func (s *Store) InsertListing(ctx context.Context, sellerID int64, d domain.ListingDraft) (domain.Listing, error) {
	var l domain.Listing
	var photo *string
	if d.PhotoID != "" {
		photo = &d.PhotoID
	}
	err := s.q.GetContext(ctx, &l, `
		INSERT INTO listings (seller_id, title, description, price, currency, photo_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING `+listingColumns, sellerID, d.Title, d.Description, d.Price, d.Currency, photo)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return l, nil
}

// Listing loads one listing.
func (s *Store) Listing(ctx context.Context, id int64) (domain.Listing, error) {
	var l domain.Listing
	if err := s.q.GetContext(ctx, &l, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id); err != nil {
		return domain.Listing{}, notFound("listing", err)
	}
	return l, nil
}

// ListingsByStatus pages listings with the given status, newest first.
func (s *Store) ListingsByStatus(ctx context.Context, st domain.ListingStatus, offset, limit int) ([]domain.Listing, error) {
	var list []domain.Listing
	err := s.q.SelectContext(ctx, &list, `
		SELECT `+listingColumns+` FROM listings WHERE status = $1
		ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`, string(st), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listings by status: %w", err)
	}
	return list, nil
}

// ListingsBySeller returns a seller's listings, newest first.
func (s *Store) ListingsBySeller(ctx context.Context, sellerID int64, limit int) ([]domain.Listing, error) {
	var list []domain.Listing
	err := s.q.SelectContext(ctx, &list, `
		SELECT `+listingColumns+` FROM listings WHERE seller_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, sellerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listings by seller: %w", err)
	}
	return list, nil
}

// SetListingStatus moves a listing to `to` when its current status is one of from.
func (s *Store) SetListingStatus(ctx context.Context, id int64, from []domain.ListingStatus, to domain.ListingStatus) error {
	return guarded(ctx, s.q, "set listing status", `
		UPDATE listings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)`, id, pq.Array(listingStrings(from)), string(to))
}

func listingStrings(list []domain.ListingStatus) []string {
	out := make([]string, len(list))
	for i, st := range list {
		out[i] = string(st)
	}
	return out
}

// InsertOffer stores an open offer.
func (s *Store) InsertOffer(ctx context.Context, listingID, buyerID, price int64) (domain.Offer, error) {
	var o domain.Offer
	err := s.q.GetContext(ctx, &o, `
		INSERT INTO offers (listing_id, buyer_id, price) VALUES ($1, $2, $3)
		RETURNING `+offerColumns, listingID, buyerID, price)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("insert offer: %w", err)
	}
	return o, nil
}

// Offer loads one offer.
func (s *Store) Offer(ctx context.Context, id int64) (domain.Offer, error) {
	var o domain.Offer
	if err := s.q.GetContext(ctx, &o, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id); err != nil {
		return domain.Offer{}, notFound("offer", err)
	}
	return o, nil
}

// OpenOffers lists open offers on a listing, highest price first.
func (s *Store) OpenOffers(ctx context.Context, listingID int64) ([]domain.Offer, error) {
	var list []domain.Offer
	err := s.q.SelectContext(ctx, &list, `
		SELECT `+offerColumns+` FROM offers WHERE listing_id = $1 AND status = 'open'
		ORDER BY price DESC, id ASC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("open offers: %w", err)
	}
	return list, nil
}

// SetOfferStatus moves an open offer to a final status. Accepting declines every
// other open offer on the same listing.
func (s *Store) SetOfferStatus(ctx context.Context, id int64, to domain.OfferStatus) error {
	return s.withTx(ctx, "set offer status", func(tx *Store) error {
		var listingID int64
		err := tx.q.GetContext(ctx, &listingID, `
			UPDATE offers SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'open' RETURNING listing_id`, id, string(to))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("set offer status: %w", domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("set offer status: %w", err)
		}
		if to != domain.OfferAccepted {
			return nil
		}
		if _, err := tx.q.ExecContext(ctx, `
			UPDATE offers SET status = 'declined', updated_at = NOW()
			WHERE listing_id = $1 AND id <> $2 AND status = 'open'`, listingID, id); err != nil {
			return fmt.Errorf("decline other offers: %w", err)
		}
		return nil
	})
}

// DealRequest is the input of CreateDeal.
type DealRequest struct {
	ListingID  int64
	BuyerID    int64
	SellerID   int64
	OfferID    *int64
	Price      int64
	RequestKey string
}

// CreateDeal reserves an active listing and opens a requested deal in one transaction.
// Replaying the same request key, even concurrently, returns the deal created first.
// A different buyer that loses the reservation gets domain.ErrConflict.
func (s *Store) CreateDeal(ctx context.Context, r DealRequest) (domain.Deal, error) {
	if d, ok, err := s.dealByRequest(ctx, r); err != nil || ok {
		return d, err
	}
	var d domain.Deal
	err := s.withTx(ctx, "create deal", func(tx *Store) error {
		if err := guarded(ctx, tx.q, "reserve listing", `
			UPDATE listings SET status = 'reserved', updated_at = NOW()
			WHERE id = $1 AND status = 'active'`, r.ListingID); err != nil {
			return err
		}
		err := tx.q.GetContext(ctx, &d, `
			INSERT INTO deals (listing_id, buyer_id, seller_id, offer_id, price, status, request_key)
			VALUES ($1, $2, $3, $4, $5, 'requested', $6)
			RETURNING `+dealColumns, r.ListingID, r.BuyerID, r.SellerID, r.OfferID, r.Price, r.RequestKey)
		if isUniqueViolation(err, liveDealIndex) || isUniqueViolation(err, requestKeyIndex) {
			return fmt.Errorf("create deal: %w", domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("create deal: %w", err)
		}
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		// The reservation may have been lost to a replay of this very request.
		if prior, ok, lookupErr := s.dealByRequest(ctx, r); lookupErr == nil && ok {
			return prior, nil
		}
	}
	return d, err
}

// dealByRequest finds the deal opened by an earlier submission of r.
// A key reused by another buyer or for another listing does not match.
func (s *Store) dealByRequest(ctx context.Context, r DealRequest) (domain.Deal, bool, error) {
	var d domain.Deal
	err := s.q.GetContext(ctx, &d, `SELECT `+dealColumns+` FROM deals
		WHERE request_key = $1 AND buyer_id = $2 AND listing_id = $3`, r.RequestKey, r.BuyerID, r.ListingID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deal{}, false, nil
	}
	if err != nil {
		return domain.Deal{}, false, fmt.Errorf("create deal: lookup key: %w", err)
	}
	return d, true, nil
}

// Deal loads one deal.
func (s *Store) Deal(ctx context.Context, id int64) (domain.Deal, error) {
	var d domain.Deal
	if err := s.q.GetContext(ctx, &d, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id); err != nil {
		return domain.Deal{}, notFound("deal", err)
	}
	return d, nil
}

// DealsByUser lists deals where the user is buyer or seller, newest first.
func (s *Store) DealsByUser(ctx context.Context, userID int64, limit int) ([]domain.DealView, error) {
	var list []domain.DealView
	err := s.q.SelectContext(ctx, &list, `
		SELECT d.id, d.listing_id, d.buyer_id, d.seller_id, d.offer_id, d.price, d.status, d.request_key,
		       d.created_at, d.updated_at, l.title, l.currency,
		       EXISTS (SELECT 1 FROM reviews r WHERE r.deal_id = d.id) AS reviewed
		FROM deals d JOIN listings l ON l.id = d.listing_id
		WHERE d.buyer_id = $1 OR d.seller_id = $1
		ORDER BY d.created_at DESC, d.id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("deals by user: %w", err)
	}
	return list, nil
}

// DealTransition moves a deal and, optionally, its listing in one transaction.
type DealTransition struct {
	DealID      int64
	DealFrom    []domain.DealStatus
	DealTo      domain.DealStatus
	ListingFrom domain.ListingStatus
	ListingTo   domain.ListingStatus
}

// TransitionDeal applies t. Either guard failing rolls back both rows with domain.ErrConflict.
func (s *Store) TransitionDeal(ctx context.Context, t DealTransition) (domain.Deal, error) {
	from := make([]string, len(t.DealFrom))
	for i, st := range t.DealFrom {
		from[i] = string(st)
	}
	var d domain.Deal
	err := s.withTx(ctx, "transition deal", func(tx *Store) error {
		err := tx.q.GetContext(ctx, &d, `
			UPDATE deals SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = ANY($2)
			RETURNING `+dealColumns, t.DealID, pq.Array(from), string(t.DealTo))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transition deal: %w", domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("transition deal: %w", err)
		}
		if t.ListingTo == "" {
			return nil
		}
		return guarded(ctx, tx.q, "transition listing", `
			UPDATE listings SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2`, d.ListingID, string(t.ListingFrom), string(t.ListingTo))
	})
	return d, err
}

// InsertReview stores the single review of a deal.
func (s *Store) InsertReview(ctx context.Context, r domain.Review) (int64, error) {
	var id int64
	err := s.q.GetContext(ctx, &id, `
		INSERT INTO reviews (deal_id, reviewer_id, seller_id, rating, text)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.DealID, r.ReviewerID, r.SellerID, r.Rating, r.Text)
	if isUniqueViolation(err, reviewDealIndex) {
		return 0, fmt.Errorf("insert review: %w", domain.ErrDuplicate)
	}
	if err != nil {
		return 0, fmt.Errorf("insert review: %w", err)
	}
	return id, nil
}

// SellerRating averages all reviews of a seller.
func (s *Store) SellerRating(ctx context.Context, sellerID int64) (domain.SellerRating, error) {
	var r domain.SellerRating
	err := s.q.GetContext(ctx, &r, `
		SELECT COALESCE(AVG(rating), 0)::float8 AS average, COUNT(*) AS count
		FROM reviews WHERE seller_id = $1`, sellerID)
	if err != nil {
		return domain.SellerRating{}, fmt.Errorf("seller rating: %w", err)
	}
	return r, nil
}
