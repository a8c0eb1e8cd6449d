// Package gemini is a drafting backend on the Google Generative Language API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/xumezzan/marketplace-project/internal/drafting"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey string
	Model  string
	// Endpoint overrides the API root, e.g. for a proxy.
	Endpoint string
}

// Backend calls models.generateContent once per request.
type Backend struct {
	models *generativelanguage.ModelsService
	model  string
}

// New returns ErrConfiguration when no API key is set, before any network use.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", drafting.ErrConfiguration)
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := generativelanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create gemini client: %v", drafting.ErrConfiguration, err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return &Backend{models: svc.Models, model: model}, nil
}

func (b *Backend) Analyze(ctx context.Context, req drafting.AnalyzeRequest) ([]byte, error) {
	text, err := b.generate(ctx, req.Instruction, &generativelanguage.GenerationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   responseSchema(req.Schema),
	})
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (b *Backend) Describe(ctx context.Context, req drafting.DescribeRequest) (string, error) {
	return b.generate(ctx, req.Instruction, &generativelanguage.GenerationConfig{
		ResponseMimeType: "text/plain",
	})
}

func (b *Backend) generate(ctx context.Context, prompt string, gen *generativelanguage.GenerationConfig) (string, error) {
	resp, err := b.models.GenerateContent(b.model, &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
		GenerationConfig: gen,
	}).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return "", fmt.Errorf("%w: gemini returned %d: %s", drafting.ErrUpstream, gerr.Code, gerr.Message)
		}
		return "", fmt.Errorf("%w: %w", drafting.ErrUpstream, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		reason := "no candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + resp.PromptFeedback.BlockReason
		}
		return "", fmt.Errorf("%w: %s", drafting.ErrUpstream, reason)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func responseSchema(s drafting.Schema) *generativelanguage.Schema {
	props := make(map[string]generativelanguage.Schema, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = generativelanguage.Schema{Type: string(f.Type)}
	}
	return &generativelanguage.Schema{
		Type:       "OBJECT",
		Properties: props,
		Required:   s.Names(),
	}
}
