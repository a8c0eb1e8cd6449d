// Package reviews builds client reviews and keeps them newest first.
package reviews

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

const (
	MinRating     = 1
	MaxRating     = 5
	DefaultAuthor = "Вы"
	// DateLayout is the display date stored with each review.
	DateLayout = "02.01.2006"
)

var (
	ErrEmptyInput    = errors.New("review text is required")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Submitter turns raw input into a review.
type Submitter struct {
	DefaultRating int
	Now           func() time.Time
	NewID         func() string
}

func (s Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Build validates input and returns a new review. A zero rating takes the
// default rating.
func (s Submitter) Build(specialistID, author, text string, rating int) (domain.Review, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Review{}, ErrEmptyInput
	}
	if rating == 0 {
		rating = s.DefaultRating
		if rating == 0 {
			rating = MaxRating
		}
	}
	if rating < MinRating || rating > MaxRating {
		return domain.Review{}, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultAuthor
	}
	id := ""
	if s.NewID != nil {
		id = s.NewID()
	} else {
		id = uuid.New().String()
	}
	now := s.now()
	return domain.Review{
		ID:           id,
		SpecialistID: specialistID,
		Author:       author,
		Rating:       rating,
		Date:         now.Format(DateLayout),
		Text:         text,
		CreatedAt:    now.UTC().Format(time.RFC3339Nano),
	}, nil
}

// Collection is a specialist's review list, newest first.
type Collection struct {
	mu    sync.RWMutex
	items []domain.Review
}

func NewCollection(items ...domain.Review) *Collection {
	return &Collection{items: append([]domain.Review(nil), items...)}
}

// Submit builds a review and prepends it. On error the collection is untouched.
func (c *Collection) Submit(s Submitter, specialistID, author, text string, rating int) (domain.Review, error) {
	r, err := s.Build(specialistID, author, text, rating)
	if err != nil {
		return domain.Review{}, err
	}
	c.Prepend(r)
	return r, nil
}

func (c *Collection) Prepend(r domain.Review) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]domain.Review{r}, c.items...)
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Items returns a copy, newest first.
func (c *Collection) Items() []domain.Review {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Review(nil), c.items...)
}

// Average returns the mean rating rounded to one decimal, or 0 when empty.
func Average(items []domain.Review) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0
	for _, r := range items {
		sum += r.Rating
	}
	return RoundRating(float64(sum) / float64(len(items)))
}

func RoundRating(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
