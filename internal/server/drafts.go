package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/drafting"
)

func (h *handler) registerDrafts(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "draft-task",
		Method:      http.MethodPost,
		Path:        "/drafts",
		Summary:     "Draft a task from free text",
		Description: "Runs one generation call and returns the structured draft. A client may have one draft in flight.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Body DraftRequest `json:"body"`
	}) (*struct {
		Body domain.TaskDraft `json:"body"`
	}, error) {
		clientID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		locale, err := drafting.ParseLocale(input.Body.Language)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		release, err := h.guard.Acquire(ctx, "draft:"+clientID, h.draftTTL)
		if err != nil {
			return nil, handleError(err)
		}
		defer release()
		draft, err := h.eng.DraftTask(ctx, input.Body.Description, locale, clientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskDraft `json:"body"`
		}{Body: draft}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "describe-task",
		Method:      http.MethodPost,
		Path:        "/drafts/description",
		Summary:     "Generate a task description from a title",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Body DescribeRequest `json:"body"`
	}) (*struct {
		Body DescribeResponse `json:"body"`
	}, error) {
		clientID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		locale, err := drafting.ParseLocale(input.Body.Language)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		text, err := h.eng.DescribeTask(ctx, input.Body.Title, input.Body.CategoryID, locale, clientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DescribeResponse `json:"body"`
		}{Body: DescribeResponse{Description: text}}, nil
	})
}
