// Package wizard is the three-step task creation flow: describe the task,
// review the generated fields, confirm and publish.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/drafting"
)

type Step int

const (
	StepDescribe Step = iota + 1
	StepDetails
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepDescribe:
		return "describe"
	case StepDetails:
		return "details"
	case StepConfirm:
		return "confirm"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrBusy      = errors.New("draft request already in flight")
	ErrClosed    = errors.New("wizard closed")
	ErrWrongStep = errors.New("operation not allowed on this step")
	ErrBudget    = errors.New("budget minimum must not exceed maximum")
)

const (
	FallbackTitle    = "Новая задача"
	FallbackCategory = "Разное"
	FallbackLocation = "Удаленно"
	FallbackDate     = "По договоренности"
)

var localeDefaults = map[domain.Locale]struct{ Location, Date string }{
	domain.LocaleRU: {Location: "Москва", Date: "В ближайшее время"},
	domain.LocaleUZ: {Location: "Moskva", Date: "Tez orada"},
}

// Drafter is the drafting pipeline as seen by the wizard.
type Drafter interface {
	DraftFromDescription(ctx context.Context, rawInput string, locale domain.Locale) (domain.TaskDraft, error)
}

// Details are the editable task fields on step 2.
type Details struct {
	Title       string
	Category    string
	Description string
	BudgetMin   *float64
	BudgetMax   *float64
	Location    string
	Date        string
}

type Wizard struct {
	drafter Drafter
	locale  domain.Locale

	mu      sync.Mutex
	step    Step
	input   string
	draft   domain.TaskDraft
	details Details
	cancel  context.CancelFunc
	gen     uint64
	closed  bool
}

func New(d Drafter, locale domain.Locale) *Wizard {
	if locale == "" {
		locale = domain.LocaleRU
	}
	w := &Wizard{drafter: d, locale: locale}
	w.reset()
	return w
}

// reset must be called with mu held or before the wizard is shared.
func (w *Wizard) reset() {
	def := localeDefaults[w.locale]
	w.step = StepDescribe
	w.input = ""
	w.draft = domain.TaskDraft{}
	w.details = Details{Location: def.Location, Date: def.Date}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Busy reports whether an analyze call is in flight.
func (w *Wizard) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *Wizard) Draft() domain.TaskDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) Details() Details {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.details
}

func (w *Wizard) SetInput(raw string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.step != StepDescribe {
		return ErrWrongStep
	}
	w.input = raw
	return nil
}

// Analyze drafts the task from the step 1 input. On success the draft fields
// are filled and the wizard moves to step 2; on failure it stays on step 1
// with nothing changed. Only one call may be in flight.
func (w *Wizard) Analyze(ctx context.Context) error {
	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return ErrClosed
	case w.step != StepDescribe:
		w.mu.Unlock()
		return ErrWrongStep
	case w.cancel != nil:
		w.mu.Unlock()
		return ErrBusy
	case strings.TrimSpace(w.input) == "":
		w.mu.Unlock()
		return drafting.ErrEmptyInput
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.gen++
	gen, input, locale := w.gen, w.input, w.locale
	w.mu.Unlock()

	draft, err := w.drafter.DraftFromDescription(ctx, input, locale)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen == w.gen {
		w.cancel = nil
	}
	if w.closed || gen != w.gen {
		return ErrClosed
	}
	if err != nil {
		return err
	}
	lo, hi := draft.EstimatedBudgetMin, draft.EstimatedBudgetMax
	w.draft = draft
	w.details.Title = draft.SuggestedTitle
	w.details.Category = draft.SuggestedCategory
	w.details.Description = draft.RefinedDescription
	w.details.BudgetMin = &lo
	w.details.BudgetMax = &hi
	w.step = StepDetails
	return nil
}

// Edit changes the step 2 fields.
func (w *Wizard) Edit(fn func(*Details)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.step != StepDetails {
		return ErrWrongStep
	}
	fn(&w.details)
	return nil
}

// Next moves step 2 to step 3 once the budget range is valid.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.step != StepDetails {
		return ErrWrongStep
	}
	if err := validateBudget(w.details.BudgetMin, w.details.BudgetMax); err != nil {
		return err
	}
	w.step = StepConfirm
	return nil
}

// Back returns to the previous step. Leaving step 2 discards the draft so a
// new analysis starts clean.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	switch w.step {
	case StepConfirm:
		w.step = StepDetails
	case StepDetails:
		input := w.input
		w.reset()
		w.input = input
	default:
		return ErrWrongStep
	}
	return nil
}

// Submit returns the confirmed fields with fallbacks applied and resets the
// wizard to step 1.
func (w *Wizard) Submit() (Details, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Details{}, ErrClosed
	}
	if w.step != StepConfirm {
		return Details{}, ErrWrongStep
	}
	out := w.details
	out.Title = orDefault(out.Title, FallbackTitle)
	out.Category = orDefault(out.Category, FallbackCategory)
	out.Location = orDefault(out.Location, FallbackLocation)
	out.Date = orDefault(out.Date, FallbackDate)
	out.Description = strings.TrimSpace(out.Description)
	w.reset()
	return out, nil
}

// Close cancels an in-flight analysis; its result is dropped.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
}

func validateBudget(lo, hi *float64) error {
	if (lo != nil && *lo < 0) || (hi != nil && *hi < 0) {
		return fmt.Errorf("%w: budget must not be negative", ErrBudget)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return ErrBudget
	}
	return nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
