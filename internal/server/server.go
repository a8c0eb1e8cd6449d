package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/xumezzan/marketplace-project/internal/drafting"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/engine/auth"
	"github.com/xumezzan/marketplace-project/internal/escrow"
	"github.com/xumezzan/marketplace-project/internal/inflight"
	"github.com/xumezzan/marketplace-project/internal/repo"
	"github.com/xumezzan/marketplace-project/internal/reviews"
	"github.com/xumezzan/marketplace-project/internal/wizard"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
	// Inflight limits each client to one draft request at a time. Defaults
	// to an in-process guard.
	Inflight inflight.Guard
	Log      zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid deal status transition: confirm not allowed from idle"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"from\":\"idle\"}"`
}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type handler struct {
	eng      *engine.Engine
	guard    inflight.Guard
	draftTTL time.Duration
}

// New returns an HTTP handler exposing the marketplace API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	h := &handler{eng: cfg.Engine, guard: cfg.Inflight, draftTTL: 2 * cfg.Engine.Config.Generation.Timeout}
	if h.guard == nil {
		h.guard = inflight.NewMemory()
	}
	if h.draftTTL <= 0 {
		h.draftTTL = time.Minute
	}

	router := chi.NewRouter()
	router.Use(hlog.NewHandler(cfg.Log))
	router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", d).
			Msg("request")
	}))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Log))
	router.Handle("/metrics", promhttp.Handler())

	hcfg := huma.DefaultConfig("Marketplace API", "1.0.0")
	hcfg.Info.Description = "Task drafting, safe deals and specialist reviews."
	hcfg.OpenAPIPath = path.Join(basePath, "openapi")
	hcfg.DocsPath = "/docs"
	hcfg.Components.SecuritySchemes = securitySchemes()
	hcfg.OnAddOperation = append(hcfg.OnAddOperation, documentOperation(basePath))
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	h.registerCategories(group)
	h.registerDrafts(group)
	h.registerTasks(group)
	h.registerSpecialists(group)
	h.registerReviews(group)
	h.registerDeals(group)
	h.registerOffers(group)
	h.registerEvents(group)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"action": fe.Action})
	}
	if errors.Is(err, auth.ErrNoActor) {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	var te escrow.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"op": te.Op, "from": te.From})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, drafting.ErrEmptyInput),
		errors.Is(err, reviews.ErrEmptyInput),
		errors.Is(err, escrow.ErrEmptyReason):
		return newAPIError(http.StatusBadRequest, "empty_input", err.Error(), nil)
	case errors.Is(err, reviews.ErrInvalidRating), errors.Is(err, wizard.ErrBudget), errors.Is(err, drafting.ErrLocale):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, inflight.ErrBusy):
		return newAPIError(http.StatusConflict, "draft_in_flight", err.Error(), nil)
	case errors.Is(err, escrow.ErrSessionClosed), errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, drafting.ErrConfiguration):
		return newAPIError(http.StatusServiceUnavailable, "configuration_error", err.Error(), nil)
	case errors.Is(err, drafting.ErrSchema):
		return newAPIError(http.StatusBadGateway, "schema_error", err.Error(), nil)
	case errors.Is(err, drafting.ErrUpstream):
		return newAPIError(http.StatusBadGateway, "upstream_error", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

// defaultCodeForStatus names errors huma raises itself (body decoding,
// parameter validation) so every envelope carries a code.
func defaultCodeForStatus(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusInternalServerError: "internal_error",
}

// documentOperation runs as each operation is added to the OpenAPI document:
// it tags the operation by resource and marks writes as needing a client
// identity. Reads stay public.
func documentOperation(basePath string) huma.AddOpFunc {
	return func(_ *huma.OpenAPI, op *huma.Operation) {
		rest := strings.TrimPrefix(strings.TrimPrefix(op.Path, basePath), "/")
		if resource, _, _ := strings.Cut(rest, "/"); resource != "" && len(op.Tags) == 0 {
			op.Tags = []string{resource}
		}
		if op.Method == http.MethodGet {
			return
		}
		op.Security = []map[string][]string{
			{"bearerAuth": {}},
			{"clientHeader": {}},
		}
	}
}

func securitySchemes() map[string]*huma.SecurityScheme {
	return map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "HS256 token; the subject is the client id.",
		},
		"clientHeader": {
			Type:        "apiKey",
			In:          "header",
			Name:        clientHeader,
			Description: "Client id, accepted only when the server trusts the header.",
		},
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (h *handler) registerCategories(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-categories",
		Method:      http.MethodGet,
		Path:        "/categories",
		Summary:     "List task categories",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CategoriesResponse `json:"body"`
	}, error) {
		return &struct {
			Body CategoriesResponse `json:"body"`
		}{Body: CategoriesResponse{Items: nonNilSlice(h.eng.Config.Categories)}}, nil
	})
}
