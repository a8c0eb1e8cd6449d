// Package drafting turns a free-text task request into a structured draft
// using an external generation backend. Every call is a single attempt:
// failures surface to the caller and no partial draft is ever returned.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

// AnalyzeRequest is what a backend receives for a draft. LLM backends send
// Instruction and ask for Schema; service backends send Description and Locale.
type AnalyzeRequest struct {
	Description string
	Locale      domain.Locale
	Instruction string
	Schema      Schema
}

// DescribeRequest asks for a description from a title and category.
type DescribeRequest struct {
	Title       string
	Category    string
	Locale      domain.Locale
	Instruction string
}

// Backend performs exactly one generation call per method invocation.
// Analyze returns the raw JSON reply; the pipeline owns parsing.
type Backend interface {
	Analyze(ctx context.Context, req AnalyzeRequest) ([]byte, error)
	Describe(ctx context.Context, req DescribeRequest) (string, error)
}

type Pipeline struct {
	backend    Backend
	categories []string
	log        zerolog.Logger
}

type Option func(*Pipeline)

// WithCategories sets the category hint list sent with every analyze call.
func WithCategories(categories []string) Option {
	return func(p *Pipeline) { p.categories = categories }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New builds a pipeline. A nil backend is allowed; calls then fail with
// ErrConfiguration.
func New(backend Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend:    backend,
		categories: DefaultCategories,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DraftFromDescription drafts a task from free text. Blank input fails with
// ErrEmptyInput without touching the backend.
func (p *Pipeline) DraftFromDescription(ctx context.Context, rawInput string, locale domain.Locale) (domain.TaskDraft, error) {
	input := strings.TrimSpace(rawInput)
	if input == "" {
		return domain.TaskDraft{}, ErrEmptyInput
	}
	locale, err := ParseLocale(string(locale))
	if err != nil {
		return domain.TaskDraft{}, err
	}
	if p.backend == nil {
		return domain.TaskDraft{}, ErrConfiguration
	}
	req := AnalyzeRequest{
		Description: input,
		Locale:      locale,
		Instruction: analyzeInstruction(input, locale, p.categories),
		Schema:      DraftSchema,
	}
	raw, err := p.backend.Analyze(ctx, req)
	if err != nil {
		err = classify(err)
		p.log.Warn().Err(err).Str("locale", string(locale)).Msg("draft generation failed")
		return domain.TaskDraft{}, err
	}
	draft, err := parseDraft(raw, input)
	if err != nil {
		p.log.Warn().Err(err).Str("locale", string(locale)).Msg("draft reply rejected")
		return domain.TaskDraft{}, err
	}
	p.log.Debug().
		Str("locale", string(locale)).
		Str("category", draft.SuggestedCategory).
		Float64("budget_min", draft.EstimatedBudgetMin).
		Float64("budget_max", draft.EstimatedBudgetMax).
		Msg("draft generated")
	return draft, nil
}

// DescribeTask generates a task description from a title and category.
func (p *Pipeline) DescribeTask(ctx context.Context, title, category string, locale domain.Locale) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyInput
	}
	locale, err := ParseLocale(string(locale))
	if err != nil {
		return "", err
	}
	if p.backend == nil {
		return "", ErrConfiguration
	}
	category = strings.TrimSpace(category)
	text, err := p.backend.Describe(ctx, DescribeRequest{
		Title:       title,
		Category:    category,
		Locale:      locale,
		Instruction: describeInstruction(title, category, locale),
	})
	if err != nil {
		err = classify(err)
		p.log.Warn().Err(err).Str("locale", string(locale)).Msg("description generation failed")
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty description", ErrSchema)
	}
	return text, nil
}

// classify keeps known failure kinds and folds everything else into ErrUpstream.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrUpstream), errors.Is(err, ErrSchema):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}

// Unconfigured is the backend used when no generation service is set up.
type Unconfigured struct{}

func (Unconfigured) Analyze(context.Context, AnalyzeRequest) ([]byte, error) {
	return nil, ErrConfiguration
}

func (Unconfigured) Describe(context.Context, DescribeRequest) (string, error) {
	return "", ErrConfiguration
}
