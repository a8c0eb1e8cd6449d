package server

import (
	"github.com/xumezzan/marketplace-project/internal/domain"
)

// Request payloads

type DraftRequest struct {
	Description string `json:"description" doc:"Free-form task description"`
	Language    string `json:"language,omitempty" enum:"ru,uz"`
}

type DescribeRequest struct {
	Title      string `json:"title"`
	CategoryID string `json:"category_id,omitempty"`
	Language   string `json:"language,omitempty" enum:"ru,uz"`
}

type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	BudgetMin   *float64 `json:"budget_min,omitempty"`
	BudgetMax   *float64 `json:"budget_max,omitempty"`
	Location    string   `json:"location,omitempty"`
	Date        string   `json:"date,omitempty"`
}

type UpsertSpecialistRequest struct {
	Name       string   `json:"name"`
	Profession string   `json:"profession"`
	AvatarURL  string   `json:"avatar_url,omitempty"`
	About      string   `json:"description,omitempty"`
	HourlyRate string   `json:"hourly_rate,omitempty" example:"1500"`
	Categories []string `json:"categories,omitempty"`
}

type PortfolioRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ReviewRequest struct {
	Text   string `json:"text"`
	Rating int    `json:"rating,omitempty" minimum:"0" maximum:"5" doc:"1-5; omitted takes the default"`
	Author string `json:"author,omitempty"`
}

type OpenDealRequest struct {
	SpecialistID string `json:"specialist_id"`
	TaskID       string `json:"task_id,omitempty"`
	Amount       string `json:"amount,omitempty" example:"1500.00" doc:"Defaults to the specialist hourly rate"`
}

type DisputeRequest struct {
	Reason string `json:"reason"`
}

type SubmitOfferRequest struct {
	SpecialistID string `json:"specialist_id" doc:"Must match the caller"`
	Price        string `json:"price" example:"1500.00"`
	Message      string `json:"message"`
}

// Responses

type DescribeResponse struct {
	Description string `json:"description"`
}

type CategoriesResponse struct {
	Items []string `json:"items"`
}

type paginatedTasks struct {
	Items      []domain.Task `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type paginatedSpecialists struct {
	Items      []domain.Specialist `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

type reviewList struct {
	Items []domain.Review `json:"items"`
}

type dealList struct {
	Items []domain.Deal `json:"items"`
}

type offerList struct {
	Items []domain.Offer `json:"items"`
}

// OfferAcceptance is the accepted offer and the deal it opened.
type OfferAcceptance struct {
	Offer domain.Offer `json:"offer"`
	Deal  domain.Deal  `json:"deal"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
