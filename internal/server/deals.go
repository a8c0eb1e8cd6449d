package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

type dealOutput struct {
	Body domain.Deal `json:"body"`
}

func (h *handler) registerDeals(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "open-deal",
		Method:        http.MethodPost,
		Path:          "/deals",
		Summary:       "Open a deal with a specialist",
		Description:   "Returns 201 with a new idle deal, or 200 with the client's active deal for the same specialist and task.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body OpenDealRequest `json:"body"`
	}) (*struct {
		Status int
		Body   domain.Deal `json:"body"`
	}, error) {
		clientID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		deal, created, err := h.eng.OpenDeal(ctx, engine.DealOpenOptions{
			ClientID:     clientID,
			SpecialistID: input.Body.SpecialistID,
			TaskID:       input.Body.TaskID,
			Amount:       input.Body.Amount,
		})
		if err != nil {
			return nil, handleError(err)
		}
		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		return &struct {
			Status int
			Body   domain.Deal `json:"body"`
		}{Status: status, Body: deal}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-deals",
		Method:      http.MethodGet,
		Path:        "/deals",
		Summary:     "List deals, oldest first",
	}, func(ctx context.Context, input *struct {
		ClientID     string   `query:"client_id"`
		SpecialistID string   `query:"specialist_id"`
		Status       []string `query:"status" doc:"Comma-separated statuses"`
	}) (*struct {
		Body dealList `json:"body"`
	}, error) {
		items, err := h.eng.ListDeals(ctx, repo.DealFilters{
			ClientID:     input.ClientID,
			SpecialistID: input.SpecialistID,
			Statuses:     input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body dealList `json:"body"`
		}{Body: dealList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-deal",
		Method:      http.MethodGet,
		Path:        "/deals/{deal_id}",
		Summary:     "Get a deal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DealID string `path:"deal_id"`
	}) (*dealOutput, error) {
		deal, err := h.eng.GetDeal(ctx, input.DealID)
		if err != nil {
			return nil, handleError(err)
		}
		return &dealOutput{Body: deal}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "discard-deal",
		Method:        http.MethodDelete,
		Path:          "/deals/{deal_id}",
		Summary:       "Discard a deal before work starts",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		DealID string `path:"deal_id"`
	}) (*struct{}, error) {
		clientID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.eng.DiscardDeal(ctx, input.DealID, clientID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	action := func(id, path, summary, description string, run func(ctx context.Context, dealID, clientID string) (domain.Deal, error)) {
		huma.Register(api, huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     summary,
			Description: description,
			Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *struct {
			DealID string `path:"deal_id"`
		}) (*dealOutput, error) {
			clientID, authErr := clientIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			deal, err := run(ctx, input.DealID, clientID)
			if err != nil {
				return nil, handleError(err)
			}
			return &dealOutput{Body: deal}, nil
		})
	}
	action("hire-specialist", "/deals/{deal_id}/hire", "Hire the specialist and reserve funds",
		"Moves an idle deal to escrow_pending. The reservation settles in the background; poll the deal for work_in_progress or reservation_failed.",
		h.eng.Hire)
	action("confirm-completion", "/deals/{deal_id}/confirm", "Confirm the work is done and release funds",
		"Allowed only from work_in_progress.",
		h.eng.ConfirmCompletion)

	huma.Register(api, huma.Operation{
		OperationID: "dispute-deal",
		Method:      http.MethodPost,
		Path:        "/deals/{deal_id}/dispute",
		Summary:     "Open a dispute",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		DealID string         `path:"deal_id"`
		Body   DisputeRequest `json:"body"`
	}) (*dealOutput, error) {
		clientID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		deal, err := h.eng.DisputeDeal(ctx, input.DealID, clientID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &dealOutput{Body: deal}, nil
	})
}
