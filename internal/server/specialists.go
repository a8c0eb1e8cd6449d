package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

func (h *handler) registerSpecialists(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-specialists",
		Method:      http.MethodGet,
		Path:        "/specialists",
		Summary:     "Search specialists",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Category string `query:"category"`
		Query    string `query:"q" doc:"Matches name or profession"`
		Limit    int    `query:"limit" default:"50"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body paginatedSpecialists `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorTS, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, badCursor(input.Cursor)
		}
		items, err := h.eng.ListSpecialists(ctx, repo.SpecialistFilters{
			Category:        input.Category,
			Query:           input.Query,
			Limit:           limit + 1,
			CursorCreatedAt: cursorTS,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedSpecialists{Items: []domain.Specialist{}}
		if len(items) > limit {
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedSpecialists `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-specialist",
		Method:      http.MethodGet,
		Path:        "/specialists/{specialist_id}",
		Summary:     "Get a specialist profile with portfolio and reviews",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SpecialistID string `path:"specialist_id"`
	}) (*struct {
		Body domain.Specialist `json:"body"`
	}, error) {
		s, err := h.eng.GetSpecialist(ctx, input.SpecialistID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Specialist `json:"body"`
		}{Body: s}, nil
	})

	upsert := func(ctx context.Context, id string, b UpsertSpecialistRequest) (*struct {
		Body domain.Specialist `json:"body"`
	}, error) {
		actorID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := h.eng.UpsertSpecialist(ctx, engine.SpecialistOptions{
			ID:         id,
			Name:       b.Name,
			Profession: b.Profession,
			AvatarURL:  b.AvatarURL,
			About:      b.About,
			HourlyRate: b.HourlyRate,
			Categories: b.Categories,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Specialist `json:"body"`
		}{Body: s}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-specialist",
		Method:        http.MethodPost,
		Path:          "/specialists",
		Summary:       "Create a specialist profile",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body UpsertSpecialistRequest `json:"body"`
	}) (*struct {
		Body domain.Specialist `json:"body"`
	}, error) {
		return upsert(ctx, "", input.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-specialist",
		Method:      http.MethodPut,
		Path:        "/specialists/{specialist_id}",
		Summary:     "Create or replace a specialist profile",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		SpecialistID string                  `path:"specialist_id"`
		Body         UpsertSpecialistRequest `json:"body"`
	}) (*struct {
		Body domain.Specialist `json:"body"`
	}, error) {
		return upsert(ctx, input.SpecialistID, input.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-portfolio-item",
		Method:        http.MethodPost,
		Path:          "/specialists/{specialist_id}/portfolio",
		Summary:       "Add a portfolio item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SpecialistID string           `path:"specialist_id"`
		Body         PortfolioRequest `json:"body"`
	}) (*struct {
		Body domain.PortfolioItem `json:"body"`
	}, error) {
		actorID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := h.eng.AddPortfolioItem(ctx, engine.PortfolioOptions{
			SpecialistID: input.SpecialistID,
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			ImageURL:     input.Body.ImageURL,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PortfolioItem `json:"body"`
		}{Body: item}, nil
	})
}

func (h *handler) registerReviews(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-reviews",
		Method:      http.MethodGet,
		Path:        "/specialists/{specialist_id}/reviews",
		Summary:     "List reviews, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SpecialistID string `path:"specialist_id"`
		Limit        int    `query:"limit" default:"50"`
	}) (*struct {
		Body reviewList `json:"body"`
	}, error) {
		items, err := h.eng.ListReviews(ctx, input.SpecialistID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body reviewList `json:"body"`
		}{Body: reviewList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-review",
		Method:        http.MethodPost,
		Path:          "/specialists/{specialist_id}/reviews",
		Summary:       "Submit a review",
		Description:   "The review is placed at the head of the list. Blank text is rejected; an omitted rating takes the default.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SpecialistID string        `path:"specialist_id"`
		Body         ReviewRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		actorID, authErr := clientIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rv, err := h.eng.SubmitReview(ctx, engine.ReviewOptions{
			SpecialistID: input.SpecialistID,
			Author:       input.Body.Author,
			Text:         input.Body.Text,
			Rating:       input.Body.Rating,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: rv}, nil
	})
}
