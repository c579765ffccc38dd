package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ListingStatus is the lifecycle of a marketplace listing.
type ListingStatus string

const (
	ListingPending   ListingStatus = "pending"
	ListingActive    ListingStatus = "active"
	ListingReserved  ListingStatus = "reserved"
	ListingSold      ListingStatus = "sold"
	ListingRejected  ListingStatus = "rejected"
	ListingWithdrawn ListingStatus = "withdrawn"
)

var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingPending:  {ListingActive, ListingRejected, ListingWithdrawn},
	ListingActive:   {ListingReserved, ListingWithdrawn},
	ListingReserved: {ListingActive, ListingSold},
}

// CanTransition reports whether a listing may move from s to to.
func (s ListingStatus) CanTransition(to ListingStatus) bool {
	return contains(listingTransitions[s], to)
}

// Final reports whether no further transitions exist.
func (s ListingStatus) Final() bool {
	return len(listingTransitions[s]) == 0
}

// OfferStatus is the lifecycle of a price offer.
type OfferStatus string

const (
	OfferOpen      OfferStatus = "open"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferWithdrawn OfferStatus = "withdrawn"
)

var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferOpen: {OfferAccepted, OfferDeclined, OfferWithdrawn},
}

// CanTransition reports whether an offer may move from s to to.
func (s OfferStatus) CanTransition(to OfferStatus) bool {
	return contains(offerTransitions[s], to)
}

// DealStatus is the lifecycle of a buyer/seller transaction.
type DealStatus string

const (
	DealRequested DealStatus = "requested"
	DealConfirmed DealStatus = "confirmed"
	DealCompleted DealStatus = "completed"
	DealCancelled DealStatus = "cancelled"
)

var dealTransitions = map[DealStatus][]DealStatus{
	DealRequested: {DealConfirmed, DealCancelled},
	DealConfirmed: {DealCompleted, DealCancelled},
}

// CanTransition reports whether a deal may move from s to to.
func (s DealStatus) CanTransition(to DealStatus) bool {
	return contains(dealTransitions[s], to)
}

// Live reports whether the deal still holds the listing.
func (s DealStatus) Live() bool {
	return s == DealRequested || s == DealConfirmed
}

// Listing validation limits.
const (
	TitleMin       = 3
	TitleMax       = 120
	DescriptionMax = 2000
	ReviewTextMax  = 1000
	RatingMin      = 1
	RatingMax      = 5
)

// Listing is an item for sale. Price is in minor units.
type Listing struct {
	ID          int64         `db:"id"`
	SellerID    int64         `db:"seller_id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	Price       int64         `db:"price"`
	Currency    string        `db:"currency"`
	PhotoID     *string       `db:"photo_id"`
	Status      ListingStatus `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// ListingDraft is the input collected by the sell flow.
type ListingDraft struct {
	Title       string
	Description string
	Price       int64
	Currency    string
	PhotoID     string
}

// Normalize trims the draft and validates it.
func (d *ListingDraft) Normalize() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.PhotoID = strings.TrimSpace(d.PhotoID)
	if n := utf8.RuneCountInString(d.Title); n < TitleMin || n > TitleMax {
		return Invalid("title", "must be 3 to 120 characters")
	}
	if utf8.RuneCountInString(d.Description) > DescriptionMax {
		return Invalid("description", "must be at most 2000 characters")
	}
	if d.Price <= 0 {
		return Invalid("price", "must be positive")
	}
	return nil
}

// Offer is a buyer's proposed price for a listing.
type Offer struct {
	ID        int64       `db:"id"`
	ListingID int64       `db:"listing_id"`
	BuyerID   int64       `db:"buyer_id"`
	Price     int64       `db:"price"`
	Status    OfferStatus `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// Deal pairs a buyer and a seller over one listing.
type Deal struct {
	ID         int64      `db:"id"`
	ListingID  int64      `db:"listing_id"`
	BuyerID    int64      `db:"buyer_id"`
	SellerID   int64      `db:"seller_id"`
	OfferID    *int64     `db:"offer_id"`
	Price      int64      `db:"price"`
	Status     DealStatus `db:"status"`
	RequestKey string     `db:"request_key"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// Party reports whether userID is the buyer or the seller of d.
func (d Deal) Party(userID int64) bool {
	return userID == d.BuyerID || userID == d.SellerID
}

// DealView is a deal joined with its listing title for lists.
type DealView struct {
	Deal
	Title    string `db:"title"`
	Currency string `db:"currency"`
	Reviewed bool   `db:"reviewed"`
}

// Review is the buyer's rating of a completed deal.
type Review struct {
	ID         int64     `db:"id"`
	DealID     int64     `db:"deal_id"`
	ReviewerID int64     `db:"reviewer_id"`
	SellerID   int64     `db:"seller_id"`
	Rating     int       `db:"rating"`
	Text       string    `db:"text"`
	CreatedAt  time.Time `db:"created_at"`
}

// ValidateRating checks the 1..5 range.
func ValidateRating(r int) error {
	if r < RatingMin || r > RatingMax {
		return Invalid("rating", "must be between 1 and 5")
	}
	return nil
}

// SellerRating aggregates reviews of a seller.
type SellerRating struct {
	Average float64 `db:"average"`
	Count   int     `db:"count"`
}
