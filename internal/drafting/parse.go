package drafting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

// parseDraft decodes a backend reply into a draft. Malformed JSON is an
// upstream failure; valid JSON with a wrong shape is a schema failure.
func parseDraft(raw []byte, input string) (domain.TaskDraft, error) {
	body := stripFence(raw)
	if len(body) == 0 {
		return domain.TaskDraft{}, fmt.Errorf("%w: empty reply", ErrUpstream)
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.TaskDraft{}, fmt.Errorf("%w: malformed reply: %v", ErrUpstream, err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		return domain.TaskDraft{}, fmt.Errorf("%w: reply is not an object", ErrSchema)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return domain.TaskDraft{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	var (
		missing []string
		strs    = map[string]string{}
		nums    = map[string]float64{}
	)
	for _, f := range DraftSchema.Fields {
		v, ok := fields[f.Name]
		if !ok {
			v, ok = fields[f.Alias]
		}
		if !ok || isNull(v) {
			missing = append(missing, f.Name)
			continue
		}
		switch f.Type {
		case TypeString:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return domain.TaskDraft{}, fmt.Errorf("%w: %s must be a string", ErrSchema, f.Name)
			}
			s = strings.TrimSpace(s)
			if s == "" {
				return domain.TaskDraft{}, fmt.Errorf("%w: %s is empty", ErrSchema, f.Name)
			}
			strs[f.Name] = s
		case TypeNumber:
			var n float64
			if err := json.Unmarshal(v, &n); err != nil {
				return domain.TaskDraft{}, fmt.Errorf("%w: %s must be a number", ErrSchema, f.Name)
			}
			nums[f.Name] = n
		}
	}
	if len(missing) > 0 {
		return domain.TaskDraft{}, fmt.Errorf("%w: missing %s", ErrSchema, strings.Join(missing, ", "))
	}

	lo, hi := normalizeBudget(nums[fieldBudgetMin], nums[fieldBudgetMax])
	return domain.TaskDraft{
		RawInput:           input,
		SuggestedTitle:     strs[fieldTitle],
		SuggestedCategory:  strs[fieldCategory],
		RefinedDescription: strs[fieldDescription],
		EstimatedBudgetMin: lo,
		EstimatedBudgetMax: hi,
	}, nil
}

// normalizeBudget clamps negatives to zero and orders the pair.
func normalizeBudget(a, b float64) (float64, float64) {
	a = math.Max(a, 0)
	b = math.Max(b, 0)
	if a > b {
		a, b = b, a
	}
	return a, b
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if end := bytes.Index(body, []byte("```")); end >= 0 {
		body = body[:end]
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimPrefix(body, []byte("json"))
	return bytes.TrimSpace(body)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
