package bot

import "github.com/m3rciful/newsmarket/core/telegram/state"

// Conversation steps. Each waits for one text (or photo) message.
const (
	StateAddSourceLink      state.State = "add_source_link"
	StateReportReason       state.State = "report_reason"
	StateFeedbackMessage    state.State = "feedback_message"
	StateFilterKeyword      state.State = "filter_keyword"
	StateCommentContent     state.State = "comment_content"
	StateListingTitle       state.State = "listing_title"
	StateListingDescription state.State = "listing_description"
	StateListingPrice       state.State = "listing_price"
	StateListingPhoto       state.State = "listing_photo"
	StateOfferPrice         state.State = "offer_price"
	StateReviewRating       state.State = "review_rating"
	StateReviewText         state.State = "review_text"
	StateAIInput            state.State = "ai_input"
)

// Scratch keys kept in the session between steps.
const (
	tempNewsID      = "news_id"
	tempListingID   = "listing_id"
	tempDealID      = "deal_id"
	tempRating      = "rating"
	tempTitle       = "title"
	tempDescription = "description"
	tempPrice       = "price"
	tempPromptKey   = "prompt_key"
)
