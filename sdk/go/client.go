package marketplacesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal marketplace HTTP API client.
type Client struct {
	BaseURL string
	// BearerToken is an HS256 JWT whose subject is the client id.
	BearerToken string
	// ClientID is sent as X-Client-Id when no token is set. Servers accept
	// it only in development mode.
	ClientID   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://localhost:8080/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 60 * time.Second,
	}
}

// TaskDraft is the structured result of drafting a task.
type TaskDraft struct {
	RawInput           string  `json:"raw_input"`
	SuggestedTitle     string  `json:"suggested_title"`
	SuggestedCategory  string  `json:"suggested_category"`
	RefinedDescription string  `json:"refined_description"`
	EstimatedBudgetMin float64 `json:"estimated_budget_min"`
	EstimatedBudgetMax float64 `json:"estimated_budget_max"`
}

type Task struct {
	ID          string   `json:"id"`
	ClientID    string   `json:"client_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	BudgetMin   *float64 `json:"budget_min,omitempty"`
	BudgetMax   *float64 `json:"budget_max,omitempty"`
	Location    string   `json:"location"`
	Date        string   `json:"date"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
}

// NewTask is the payload for CreateTask. Empty category, location and date
// take the server fallbacks.
type NewTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	BudgetMin   *float64 `json:"budget_min,omitempty"`
	BudgetMax   *float64 `json:"budget_max,omitempty"`
	Location    string   `json:"location,omitempty"`
	Date        string   `json:"date,omitempty"`
}

type Specialist struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Profession   string   `json:"profession"`
	Rating       float64  `json:"rating"`
	ReviewsCount int      `json:"reviews_count"`
	HourlyRate   string   `json:"hourly_rate"`
	Categories   []string `json:"categories,omitempty"`
	Reviews      []Review `json:"reviews,omitempty"`
}

type Review struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Date   string `json:"date"`
	Text   string `json:"text"`
}

// Deal is a safe-deal escrow record.
type Deal struct {
	ID           string  `json:"id"`
	ClientID     string  `json:"client_id"`
	SpecialistID string  `json:"specialist_id"`
	TaskID       *string `json:"task_id,omitempty"`
	Amount       string  `json:"amount"`
	Status       string  `json:"status"`
	HoldID       *string `json:"hold_id,omitempty"`
	Reason       *string `json:"reason,omitempty"`
	Commission   *string `json:"commission,omitempty"`
	Payout       *string `json:"payout,omitempty"`
}

// Offer is a specialist's price for a task.
type Offer struct {
	ID           string  `json:"id"`
	TaskID       string  `json:"task_id"`
	SpecialistID string  `json:"specialist_id"`
	Price        string  `json:"price"`
	Message      string  `json:"message"`
	Status       string  `json:"status"`
	DealID       *string `json:"deal_id,omitempty"`
}

// OfferAcceptance is the accepted offer and the deal it opened.
type OfferAcceptance struct {
	Offer Offer `json:"offer"`
	Deal  Deal  `json:"deal"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type PaginatedTasks struct {
	Items      []Task `json:"items"`
	NextCursor string `json:"next_cursor"`
}

type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// DraftTask turns a free-form description into a structured draft.
func (c *Client) DraftTask(ctx context.Context, description, language string) (TaskDraft, error) {
	body := map[string]any{"description": description}
	if language != "" {
		body["language"] = language
	}
	var resp TaskDraft
	err := c.do(ctx, http.MethodPost, "drafts", body, &resp)
	return resp, err
}

// DescribeTask generates a description for a title.
func (c *Client) DescribeTask(ctx context.Context, title, category, language string) (string, error) {
	body := map[string]any{"title": title}
	if category != "" {
		body["category_id"] = category
	}
	if language != "" {
		body["language"] = language
	}
	var resp struct {
		Description string `json:"description"`
	}
	err := c.do(ctx, http.MethodPost, "drafts/description", body, &resp)
	return resp.Description, err
}

func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// TasksPage returns one page of tasks, newest first.
func (c *Client) TasksPage(ctx context.Context, limit int, cursor string) (PaginatedTasks, error) {
	var resp PaginatedTasks
	err := c.do(ctx, http.MethodGet, withPage("tasks", nil, limit, cursor), nil, &resp)
	return resp, err
}

// Specialists searches profiles by category and name or profession.
func (c *Client) Specialists(ctx context.Context, category, query string) ([]Specialist, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if query != "" {
		q.Set("q", query)
	}
	var resp struct {
		Items []Specialist `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, withPage("specialists", q, 0, ""), nil, &resp)
	return resp.Items, err
}

func (c *Client) GetSpecialist(ctx context.Context, id string) (Specialist, error) {
	var resp Specialist
	err := c.do(ctx, http.MethodGet, "specialists/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SubmitReview posts a review; rating 0 takes the server default.
func (c *Client) SubmitReview(ctx context.Context, specialistID, text string, rating int) (Review, error) {
	body := map[string]any{"text": text}
	if rating != 0 {
		body["rating"] = rating
	}
	var resp Review
	err := c.do(ctx, http.MethodPost, "specialists/"+url.PathEscape(specialistID)+"/reviews", body, &resp)
	return resp, err
}

// Reviews lists a specialist's reviews, newest first.
func (c *Client) Reviews(ctx context.Context, specialistID string) ([]Review, error) {
	var resp struct {
		Items []Review `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "specialists/"+url.PathEscape(specialistID)+"/reviews", nil, &resp)
	return resp.Items, err
}

// OpenDeal returns the active deal with a specialist or opens a new one.
func (c *Client) OpenDeal(ctx context.Context, specialistID, taskID, amount string) (Deal, error) {
	body := map[string]any{"specialist_id": specialistID}
	if taskID != "" {
		body["task_id"] = taskID
	}
	if amount != "" {
		body["amount"] = amount
	}
	var resp Deal
	err := c.do(ctx, http.MethodPost, "deals", body, &resp)
	return resp, err
}

func (c *Client) GetDeal(ctx context.Context, id string) (Deal, error) {
	var resp Deal
	err := c.do(ctx, http.MethodGet, "deals/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Hire starts the funds reservation. The returned deal is escrow_pending;
// poll GetDeal for the outcome.
func (c *Client) Hire(ctx context.Context, dealID string) (Deal, error) {
	return c.dealAction(ctx, dealID, "hire", nil)
}

func (c *Client) ConfirmCompletion(ctx context.Context, dealID string) (Deal, error) {
	return c.dealAction(ctx, dealID, "confirm", nil)
}

func (c *Client) Dispute(ctx context.Context, dealID, reason string) (Deal, error) {
	return c.dealAction(ctx, dealID, "dispute", map[string]any{"reason": reason})
}

func (c *Client) DiscardDeal(ctx context.Context, dealID string) error {
	return c.do(ctx, http.MethodDelete, "deals/"+url.PathEscape(dealID), nil, nil)
}

func (c *Client) dealAction(ctx context.Context, dealID, action string, body any) (Deal, error) {
	var resp Deal
	err := c.do(ctx, http.MethodPost, "deals/"+url.PathEscape(dealID)+"/"+action, body, &resp)
	return resp, err
}

// SubmitOffer offers a price for a task. The caller must be the specialist.
func (c *Client) SubmitOffer(ctx context.Context, taskID, specialistID, price, message string) (Offer, error) {
	var resp Offer
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/offers", map[string]any{
		"specialist_id": specialistID,
		"price":         price,
		"message":       message,
	}, &resp)
	return resp, err
}

// Offers lists a task's offers, newest first. An empty status lists all.
func (c *Client) Offers(ctx context.Context, taskID, status string) ([]Offer, error) {
	endpoint := "tasks/" + url.PathEscape(taskID) + "/offers"
	if status != "" {
		endpoint += "?" + url.Values{"status": {status}}.Encode()
	}
	var resp struct {
		Items []Offer `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// AcceptOffer opens the deal for an offer and rejects the task's other
// pending offers.
func (c *Client) AcceptOffer(ctx context.Context, offerID string) (OfferAcceptance, error) {
	var resp OfferAcceptance
	err := c.do(ctx, http.MethodPost, "offers/"+url.PathEscape(offerID)+"/accept", nil, &resp)
	return resp, err
}

func (c *Client) RejectOffer(ctx context.Context, offerID string) (Offer, error) {
	var resp Offer
	err := c.do(ctx, http.MethodPost, "offers/"+url.PathEscape(offerID)+"/reject", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withPage("events", nil, limit, cursor), nil, &resp)
	return resp, err
}

func withPage(endpoint string, q url.Values, limit int, cursor string) string {
	if q == nil {
		q = url.Values{}
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ClientID != "":
		req.Header.Set("X-Client-Id", c.ClientID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
