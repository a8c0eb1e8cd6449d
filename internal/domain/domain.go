package domain

// Locale selects the language of generated copy.
type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleUZ Locale = "uz"
)

// TaskDraft is the structured result of drafting a task from free text.
type TaskDraft struct {
	RawInput           string  `json:"raw_input"`
	SuggestedTitle     string  `json:"suggested_title"`
	SuggestedCategory  string  `json:"suggested_category"`
	RefinedDescription string  `json:"refined_description"`
	EstimatedBudgetMin float64 `json:"estimated_budget_min" minimum:"0"`
	EstimatedBudgetMax float64 `json:"estimated_budget_max" minimum:"0"`
}

type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

type Task struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	BudgetMin   *float64   `json:"budget_min,omitempty"`
	BudgetMax   *float64   `json:"budget_max,omitempty"`
	Location    string     `json:"location"`
	Date        string     `json:"date"`
	Status      TaskStatus `json:"status" enum:"open,in_progress,completed"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

type PortfolioItem struct {
	ID           string `json:"id"`
	SpecialistID string `json:"specialist_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Specialist struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Profession   string          `json:"profession"`
	Rating       float64         `json:"rating"`
	ReviewsCount int             `json:"reviews_count"`
	AvatarURL    string          `json:"avatar_url,omitempty"`
	About        string          `json:"description,omitempty"`
	HourlyRate   string          `json:"hourly_rate"`
	Categories   []string        `json:"categories,omitempty"`
	Portfolio    []PortfolioItem `json:"portfolio,omitempty"`
	Reviews      []Review        `json:"reviews,omitempty"`
	CreatedAt    string          `json:"created_at" format:"date-time"`
}

// Review is immutable once stored; collections are ordered newest first.
type Review struct {
	ID           string `json:"id"`
	SpecialistID string `json:"specialist_id"`
	Author       string `json:"author"`
	Rating       int    `json:"rating" minimum:"1" maximum:"5"`
	Date         string `json:"date"`
	Text         string `json:"text"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Deal is the stored record of an escrow session.
type Deal struct {
	ID           string  `json:"id"`
	ClientID     string  `json:"client_id"`
	SpecialistID string  `json:"specialist_id"`
	TaskID       *string `json:"task_id,omitempty"`
	Amount       string  `json:"amount"`
	Status       string  `json:"status" enum:"idle,escrow_pending,work_in_progress,completed,reservation_failed,disputed"`
	HoldID       *string `json:"hold_id,omitempty"`
	Reason       *string `json:"reason,omitempty"`
	Commission   *string `json:"commission,omitempty"`
	Payout       *string `json:"payout,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
	SettledAt    *string `json:"settled_at,omitempty" format:"date-time"`
	// LeaseUntil is set while escrow_pending: past it, no process is still
	// waiting on the reservation.
	LeaseUntil *string `json:"lease_until,omitempty" format:"date-time"`
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

// Offer is a specialist's response to a task. A specialist makes at most one
// offer per task; accepting one opens the deal at its price.
type Offer struct {
	ID           string      `json:"id"`
	TaskID       string      `json:"task_id"`
	SpecialistID string      `json:"specialist_id"`
	Price        string      `json:"price"`
	Message      string      `json:"message"`
	Status       OfferStatus `json:"status" enum:"pending,accepted,rejected"`
	DealID       *string     `json:"deal_id,omitempty"`
	CreatedAt    string      `json:"created_at" format:"date-time"`
	UpdatedAt    string      `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
