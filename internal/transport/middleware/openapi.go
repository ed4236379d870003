package middleware

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	errors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/transport"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidator rejects requests that do not match the documented API.
// Routes missing from the document pass through untouched.
type OpenAPIValidator struct {
	*transport.BaseHandler
	router routers.Router
}

func NewOpenAPIValidator(specPath string, lg *slog.Logger) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &OpenAPIValidator{BaseHandler: transport.NewBaseHandler(lg), router: router}, nil
}

func (v *OpenAPIValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := v.router.FindRoute(r)
		if err != nil {
			if !stderrors.Is(err, routers.ErrPathNotFound) && !stderrors.Is(err, routers.ErrMethodNotAllowed) {
				v.Logger.Warn("openapi route lookup failed", "path", r.URL.Path, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			v.HandleError(w, errors.NewValidationError(requestErrorMessage(err), errors.ErrCodeValidationFailed).WithCause(err))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestErrorMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if stderrors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("Invalid parameter %q", reqErr.Parameter.Name)
		}
		if reqErr.RequestBody != nil {
			return "Invalid request body"
		}
	}
	return "Request does not match the API description"
}
