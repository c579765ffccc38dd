// Package market runs the peer-to-peer marketplace: listings, offers, deals and reviews.
//
// Status changes go through the transition tables in the domain package first
// (ErrInvalidTransition for requests that can never succeed) and then through
// guarded storage updates, so a request that loses a race gets ErrConflict.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/storage/postgres"
)

const component = "service.market"

const (
	DefaultPageSize = 5
	ListLimit       = 20
	ModerationLimit = 10
)

// Repository is the storage the service needs. *postgres.Store satisfies it.
type Repository interface {
	InsertListing(ctx context.Context, sellerID int64, d domain.ListingDraft) (domain.Listing, error)
	Listing(ctx context.Context, id int64) (domain.Listing, error)
	ListingsByStatus(ctx context.Context, st domain.ListingStatus, offset, limit int) ([]domain.Listing, error)
	ListingsBySeller(ctx context.Context, sellerID int64, limit int) ([]domain.Listing, error)
	SetListingStatus(ctx context.Context, id int64, from []domain.ListingStatus, to domain.ListingStatus) error
	InsertOffer(ctx context.Context, listingID, buyerID, price int64) (domain.Offer, error)
	Offer(ctx context.Context, id int64) (domain.Offer, error)
	OpenOffers(ctx context.Context, listingID int64) ([]domain.Offer, error)
	SetOfferStatus(ctx context.Context, id int64, to domain.OfferStatus) error
	CreateDeal(ctx context.Context, r postgres.DealRequest) (domain.Deal, error)
	Deal(ctx context.Context, id int64) (domain.Deal, error)
	DealsByUser(ctx context.Context, userID int64, limit int) ([]domain.DealView, error)
	TransitionDeal(ctx context.Context, t postgres.DealTransition) (domain.Deal, error)
	InsertReview(ctx context.Context, r domain.Review) (int64, error)
	SellerRating(ctx context.Context, sellerID int64) (domain.SellerRating, error)
}

// EventKind names a marketplace notification.
type EventKind string

const (
	EventOfferReceived   EventKind = "offer_received"
	EventOfferAccepted   EventKind = "offer_accepted"
	EventOfferDeclined   EventKind = "offer_declined"
	EventDealRequested   EventKind = "deal_requested"
	EventDealConfirmed   EventKind = "deal_confirmed"
	EventDealCancelled   EventKind = "deal_cancelled"
	EventDealCompleted   EventKind = "deal_completed"
	EventListingApproved EventKind = "listing_approved"
	EventListingRejected EventKind = "listing_rejected"
	EventReviewReceived  EventKind = "review_received"
)

// Event tells RecipientID that something happened to one of their listings or deals.
type Event struct {
	Kind        EventKind
	RecipientID int64
	ListingID   int64
	OfferID     int64
	DealID      int64
	Price       int64
	Rating      int
}

// Notifier delivers events out of band. Delivery failures are the notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Options tunes the service.
type Options struct {
	Currency string
	PageSize int
	Notifier Notifier
}

// Service implements the marketplace operations.
type Service struct {
	repo   Repository
	opts   Options
	newKey func() string
}

// New builds a Service; zero options take defaults.
func New(repo Repository, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "EUR"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(context.Context, Event) {})
	}
	return &Service{repo: repo, opts: opts, newKey: uuid.NewString}
}

// NewRequestKey returns a key that makes Buy idempotent when reused.
func (s *Service) NewRequestKey() string { return s.newKey() }

// PageSize is the number of listings Browse returns.
func (s *Service) PageSize() int { return s.opts.PageSize }

func (s *Service) notify(ctx context.Context, e Event) {
	logger.Debug(ctx, component, "notify",
		slog.String("kind", string(e.Kind)),
		slog.Int64("recipient_id", e.RecipientID),
	)
	s.opts.Notifier.Notify(ctx, e)
}

// CreateListing validates the draft and stores it for moderation.
func (s *Service) CreateListing(ctx context.Context, sellerID int64, d domain.ListingDraft) (domain.Listing, error) {
	if d.Currency == "" {
		d.Currency = s.opts.Currency
	}
	if err := d.Normalize(); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.repo.InsertListing(ctx, sellerID, d)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	logger.Info(ctx, component, "listing.created",
		slog.Int64("listing_id", l.ID),
		slog.Int64("seller_id", sellerID),
		slog.Int64("price", l.Price),
	)
	return l, nil
}

// Browse returns one page of active listings, newest first, and whether more follow.
func (s *Service) Browse(ctx context.Context, page int) ([]domain.Listing, bool, error) {
	if page < 0 {
		page = 0
	}
	size := s.opts.PageSize
	list, err := s.repo.ListingsByStatus(ctx, domain.ListingActive, page*size, size+1)
	if err != nil {
		return nil, false, err
	}
	more := len(list) > size
	if more {
		list = list[:size]
	}
	return list, more, nil
}

// Get returns a listing. Listings outside the public statuses are visible to their seller only.
func (s *Service) Get(ctx context.Context, viewerID, listingID int64) (domain.Listing, error) {
	l, err := s.repo.Listing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	switch l.Status {
	case domain.ListingActive, domain.ListingReserved, domain.ListingSold:
		return l, nil
	}
	if l.SellerID != viewerID {
		return domain.Listing{}, fmt.Errorf("listing %d: %w", listingID, domain.ErrNotFound)
	}
	return l, nil
}

// MyListings lists the seller's own listings.
func (s *Service) MyListings(ctx context.Context, sellerID int64) ([]domain.Listing, error) {
	return s.repo.ListingsBySeller(ctx, sellerID, ListLimit)
}

// Withdraw takes a pending or active listing off the market.
func (s *Service) Withdraw(ctx context.Context, sellerID, listingID int64) error {
	l, err := s.repo.Listing(ctx, listingID)
	if err != nil {
		return err
	}
	if l.SellerID != sellerID {
		return fmt.Errorf("withdraw listing %d: %w", listingID, domain.ErrForbidden)
	}
	if !l.Status.CanTransition(domain.ListingWithdrawn) {
		return fmt.Errorf("withdraw listing %d from %s: %w", listingID, l.Status, domain.ErrInvalidTransition)
	}
	return s.repo.SetListingStatus(ctx, listingID,
		[]domain.ListingStatus{domain.ListingPending, domain.ListingActive}, domain.ListingWithdrawn)
}

// MakeOffer proposes a price for someone else's active listing.
func (s *Service) MakeOffer(ctx context.Context, buyerID, listingID, price int64) (domain.Offer, error) {
	if price <= 0 {
		return domain.Offer{}, domain.Invalid("price", "must be positive")
	}
	l, err := s.repo.Listing(ctx, listingID)
	if err != nil {
		return domain.Offer{}, err
	}
	if l.SellerID == buyerID {
		return domain.Offer{}, fmt.Errorf("offer on own listing: %w", domain.ErrForbidden)
	}
	if l.Status != domain.ListingActive {
		return domain.Offer{}, fmt.Errorf("offer on %s listing: %w", l.Status, domain.ErrInvalidTransition)
	}
	o, err := s.repo.InsertOffer(ctx, listingID, buyerID, price)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("make offer: %w", err)
	}
	s.notify(ctx, Event{Kind: EventOfferReceived, RecipientID: l.SellerID, ListingID: l.ID, OfferID: o.ID, Price: price})
	return o, nil
}

// RespondOffer lets the seller accept or decline an open offer.
// Accepting declines the other open offers on the listing.
func (s *Service) RespondOffer(ctx context.Context, sellerID, offerID int64, accept bool) (domain.Offer, error) {
	o, err := s.repo.Offer(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	l, err := s.repo.Listing(ctx, o.ListingID)
	if err != nil {
		return domain.Offer{}, err
	}
	if l.SellerID != sellerID {
		return domain.Offer{}, fmt.Errorf("respond offer %d: %w", offerID, domain.ErrForbidden)
	}
	to, kind := domain.OfferDeclined, EventOfferDeclined
	if accept {
		to, kind = domain.OfferAccepted, EventOfferAccepted
	}
	if !o.Status.CanTransition(to) {
		return domain.Offer{}, fmt.Errorf("respond offer %d: %w", offerID, domain.ErrInvalidTransition)
	}
	if err := s.repo.SetOfferStatus(ctx, offerID, to); err != nil {
		return domain.Offer{}, err
	}
	o.Status = to
	s.notify(ctx, Event{Kind: kind, RecipientID: o.BuyerID, ListingID: l.ID, OfferID: o.ID, Price: o.Price})
	return o, nil
}

// Offer returns an offer to its buyer or to the seller of the listing.
func (s *Service) Offer(ctx context.Context, userID, offerID int64) (domain.Offer, error) {
	o, err := s.repo.Offer(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	if o.BuyerID == userID {
		return o, nil
	}
	l, err := s.repo.Listing(ctx, o.ListingID)
	if err != nil {
		return domain.Offer{}, err
	}
	if l.SellerID != userID {
		return domain.Offer{}, fmt.Errorf("offer %d: %w", offerID, domain.ErrNotFound)
	}
	return o, nil
}

// Offers lists open offers on the seller's listing.
func (s *Service) Offers(ctx context.Context, sellerID, listingID int64) ([]domain.Offer, error) {
	l, err := s.repo.Listing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.SellerID != sellerID {
		return nil, fmt.Errorf("offers of listing %d: %w", listingID, domain.ErrForbidden)
	}
	return s.repo.OpenOffers(ctx, listingID)
}

// BuyRequest is the input of Buy.
type BuyRequest struct {
	BuyerID   int64
	ListingID int64
	// OfferID, when set, must be the buyer's accepted offer; its price is used.
	OfferID int64
	// RequestKey deduplicates repeated submissions; empty generates a fresh key.
	RequestKey string
}

// Buy reserves the listing for the buyer and opens a requested deal.
func (s *Service) Buy(ctx context.Context, r BuyRequest) (domain.Deal, error) {
	l, err := s.repo.Listing(ctx, r.ListingID)
	if err != nil {
		return domain.Deal{}, err
	}
	if l.SellerID == r.BuyerID {
		return domain.Deal{}, fmt.Errorf("buy own listing: %w", domain.ErrForbidden)
	}
	req := postgres.DealRequest{
		ListingID:  l.ID,
		BuyerID:    r.BuyerID,
		SellerID:   l.SellerID,
		Price:      l.Price,
		RequestKey: r.RequestKey,
	}
	if req.RequestKey == "" {
		req.RequestKey = s.newKey()
	} else if _, err := uuid.Parse(req.RequestKey); err != nil {
		return domain.Deal{}, domain.Invalid("request_key", "must be a uuid")
	}
	if r.OfferID != 0 {
		o, err := s.repo.Offer(ctx, r.OfferID)
		if err != nil {
			return domain.Deal{}, err
		}
		if o.BuyerID != r.BuyerID || o.ListingID != l.ID {
			return domain.Deal{}, fmt.Errorf("buy with offer %d: %w", o.ID, domain.ErrForbidden)
		}
		if o.Status != domain.OfferAccepted {
			return domain.Deal{}, fmt.Errorf("buy with %s offer: %w", o.Status, domain.ErrInvalidTransition)
		}
		req.OfferID = &o.ID
		req.Price = o.Price
	}
	d, err := s.repo.CreateDeal(ctx, req)
	if err != nil {
		return domain.Deal{}, err
	}
	logger.Info(ctx, component, "deal.requested",
		slog.Int64("deal_id", d.ID),
		slog.Int64("listing_id", l.ID),
		slog.Int64("buyer_id", r.BuyerID),
		slog.Int64("price", d.Price),
	)
	s.notify(ctx, Event{Kind: EventDealRequested, RecipientID: l.SellerID, ListingID: l.ID, DealID: d.ID, Price: d.Price})
	return d, nil
}

// ConfirmDeal is the seller accepting a requested deal.
func (s *Service) ConfirmDeal(ctx context.Context, sellerID, dealID int64) (domain.Deal, error) {
	d, err := s.repo.Deal(ctx, dealID)
	if err != nil {
		return domain.Deal{}, err
	}
	if d.SellerID != sellerID {
		return domain.Deal{}, fmt.Errorf("confirm deal %d: %w", dealID, domain.ErrForbidden)
	}
	if !d.Status.CanTransition(domain.DealConfirmed) {
		return domain.Deal{}, fmt.Errorf("confirm %s deal: %w", d.Status, domain.ErrInvalidTransition)
	}
	d, err = s.repo.TransitionDeal(ctx, postgres.DealTransition{
		DealID:   dealID,
		DealFrom: []domain.DealStatus{domain.DealRequested},
		DealTo:   domain.DealConfirmed,
	})
	if err != nil {
		return domain.Deal{}, err
	}
	s.notify(ctx, Event{Kind: EventDealConfirmed, RecipientID: d.BuyerID, ListingID: d.ListingID, DealID: d.ID, Price: d.Price})
	return d, nil
}

// CancelDeal is either party backing out of a live deal; the listing becomes active again.
func (s *Service) CancelDeal(ctx context.Context, actorID, dealID int64) (domain.Deal, error) {
	d, err := s.repo.Deal(ctx, dealID)
	if err != nil {
		return domain.Deal{}, err
	}
	if !d.Party(actorID) {
		return domain.Deal{}, fmt.Errorf("cancel deal %d: %w", dealID, domain.ErrForbidden)
	}
	if !d.Status.CanTransition(domain.DealCancelled) {
		return domain.Deal{}, fmt.Errorf("cancel %s deal: %w", d.Status, domain.ErrInvalidTransition)
	}
	d, err = s.repo.TransitionDeal(ctx, postgres.DealTransition{
		DealID:      dealID,
		DealFrom:    []domain.DealStatus{domain.DealRequested, domain.DealConfirmed},
		DealTo:      domain.DealCancelled,
		ListingFrom: domain.ListingReserved,
		ListingTo:   domain.ListingActive,
	})
	if err != nil {
		return domain.Deal{}, err
	}
	other := d.SellerID
	if actorID == d.SellerID {
		other = d.BuyerID
	}
	s.notify(ctx, Event{Kind: EventDealCancelled, RecipientID: other, ListingID: d.ListingID, DealID: d.ID})
	return d, nil
}

// CompleteDeal is the buyer confirming receipt; the listing is sold.
func (s *Service) CompleteDeal(ctx context.Context, buyerID, dealID int64) (domain.Deal, error) {
	d, err := s.repo.Deal(ctx, dealID)
	if err != nil {
		return domain.Deal{}, err
	}
	if d.BuyerID != buyerID {
		return domain.Deal{}, fmt.Errorf("complete deal %d: %w", dealID, domain.ErrForbidden)
	}
	if !d.Status.CanTransition(domain.DealCompleted) {
		return domain.Deal{}, fmt.Errorf("complete %s deal: %w", d.Status, domain.ErrInvalidTransition)
	}
	d, err = s.repo.TransitionDeal(ctx, postgres.DealTransition{
		DealID:      dealID,
		DealFrom:    []domain.DealStatus{domain.DealConfirmed},
		DealTo:      domain.DealCompleted,
		ListingFrom: domain.ListingReserved,
		ListingTo:   domain.ListingSold,
	})
	if err != nil {
		return domain.Deal{}, err
	}
	logger.Info(ctx, component, "deal.completed", slog.Int64("deal_id", d.ID), slog.Int64("price", d.Price))
	s.notify(ctx, Event{Kind: EventDealCompleted, RecipientID: d.SellerID, ListingID: d.ListingID, DealID: d.ID, Price: d.Price})
	return d, nil
}

// Review stores the buyer's rating of a completed deal, once.
func (s *Service) Review(ctx context.Context, buyerID, dealID int64, rating int, text string) error {
	if err := domain.ValidateRating(rating); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > domain.ReviewTextMax {
		return domain.Invalid("review", "must be at most 1000 characters")
	}
	d, err := s.repo.Deal(ctx, dealID)
	if err != nil {
		return err
	}
	if d.BuyerID != buyerID {
		return fmt.Errorf("review deal %d: %w", dealID, domain.ErrForbidden)
	}
	if d.Status != domain.DealCompleted {
		return fmt.Errorf("review %s deal: %w", d.Status, domain.ErrInvalidTransition)
	}
	if _, err := s.repo.InsertReview(ctx, domain.Review{
		DealID:     d.ID,
		ReviewerID: buyerID,
		SellerID:   d.SellerID,
		Rating:     rating,
		Text:       text,
	}); err != nil {
		return err
	}
	s.notify(ctx, Event{Kind: EventReviewReceived, RecipientID: d.SellerID, ListingID: d.ListingID, DealID: d.ID, Rating: rating})
	return nil
}

// SellerRating returns the average rating of a seller.
func (s *Service) SellerRating(ctx context.Context, sellerID int64) (domain.SellerRating, error) {
	return s.repo.SellerRating(ctx, sellerID)
}

// Deal returns a deal visible to one of its parties.
func (s *Service) Deal(ctx context.Context, userID, dealID int64) (domain.Deal, error) {
	d, err := s.repo.Deal(ctx, dealID)
	if err != nil {
		return domain.Deal{}, err
	}
	if !d.Party(userID) {
		return domain.Deal{}, fmt.Errorf("deal %d: %w", dealID, domain.ErrNotFound)
	}
	return d, nil
}

// MyDeals lists the user's deals as buyer or seller.
func (s *Service) MyDeals(ctx context.Context, userID int64) ([]domain.DealView, error) {
	return s.repo.DealsByUser(ctx, userID, ListLimit)
}

// PendingListings lists the moderation queue.
func (s *Service) PendingListings(ctx context.Context) ([]domain.Listing, error) {
	return s.repo.ListingsByStatus(ctx, domain.ListingPending, 0, ModerationLimit)
}

// ModerateListing publishes or rejects a pending listing.
func (s *Service) ModerateListing(ctx context.Context, listingID int64, approve bool) error {
	l, err := s.repo.Listing(ctx, listingID)
	if err != nil {
		return err
	}
	to, kind := domain.ListingRejected, EventListingRejected
	if approve {
		to, kind = domain.ListingActive, EventListingApproved
	}
	if !l.Status.CanTransition(to) || l.Status != domain.ListingPending {
		return fmt.Errorf("moderate %s listing: %w", l.Status, domain.ErrInvalidTransition)
	}
	if err := s.repo.SetListingStatus(ctx, listingID, []domain.ListingStatus{domain.ListingPending}, to); err != nil {
		return err
	}
	logger.Info(ctx, component, "listing.moderated", slog.Int64("listing_id", listingID), slog.String("status", string(to)))
	s.notify(ctx, Event{Kind: kind, RecipientID: l.SellerID, ListingID: l.ID})
	return nil
}
