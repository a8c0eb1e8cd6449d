package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

type offerOutput struct {
	Body domain.Offer `json:"body"`
}

func (h *handler) registerOffers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-offer",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/offers",
		Summary:       "Offer a price for a task",
		Description:   "The caller must be the specialist. A specialist makes one offer per task.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string             `path:"task_id"`
		Body   SubmitOfferRequest `json:"body"`
	}) (*offerOutput, error) {
		actorID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := h.eng.SubmitOffer(ctx, engine.OfferOptions{
			TaskID:       input.TaskID,
			SpecialistID: input.Body.SpecialistID,
			Price:        input.Body.Price,
			Message:      input.Body.Message,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &offerOutput{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-offers",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/offers",
		Summary:     "List offers on a task, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID       string `path:"task_id"`
		SpecialistID string `query:"specialist_id"`
		Status       string `query:"status" enum:"pending,accepted,rejected"`
	}) (*struct {
		Body offerList `json:"body"`
	}, error) {
		items, err := h.eng.ListOffers(ctx, repo.OfferFilters{
			TaskID:       input.TaskID,
			SpecialistID: input.SpecialistID,
			Status:       input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body offerList `json:"body"`
		}{Body: offerList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-offer",
		Method:      http.MethodGet,
		Path:        "/offers/{offer_id}",
		Summary:     "Get an offer",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OfferID string `path:"offer_id"`
	}) (*offerOutput, error) {
		o, err := h.eng.GetOffer(ctx, input.OfferID)
		if err != nil {
			return nil, handleError(err)
		}
		return &offerOutput{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-offer",
		Method:      http.MethodPost,
		Path:        "/offers/{offer_id}/accept",
		Summary:     "Accept an offer and open its deal",
		Description: "Opens an idle deal at the offered price, rejects the task's other pending offers and moves the task to in_progress.",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		OfferID string `path:"offer_id"`
	}) (*struct {
		Body OfferAcceptance `json:"body"`
	}, error) {
		clientID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, d, err := h.eng.AcceptOffer(ctx, input.OfferID, clientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OfferAcceptance `json:"body"`
		}{Body: OfferAcceptance{Offer: o, Deal: d}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-offer",
		Method:      http.MethodPost,
		Path:        "/offers/{offer_id}/reject",
		Summary:     "Reject an offer",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		OfferID string `path:"offer_id"`
	}) (*offerOutput, error) {
		clientID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := h.eng.RejectOffer(ctx, input.OfferID, clientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &offerOutput{Body: o}, nil
	})
}
