package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/hellopulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/hellopulse/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestMiddlewareWithStructuredError(t *testing.T) {
	c, rec := newTestContext()

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return apperrors.ValidationError("invalid input")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "invalid input", resp.Error)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
}

func TestMiddlewareWithStandardError(t *testing.T) {
	c, rec := newTestContext()

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return errors.New("standard error")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "internal server error", resp.Error)
	assert.Equal(t, apperrors.TypeInternal, resp.Type)
}

func TestMiddlewarePassesEchoErrorsThrough(t *testing.T) {
	c, _ := newTestContext()

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return echo.ErrNotFound
	})

	assert.ErrorIs(t, handler(c), echo.ErrNotFound)
}

func TestMiddlewareWithContext(t *testing.T) {
	c, rec := newTestContext()

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return apperrors.RateLimitedError("too many connections").
			WithContext("reason", "per_ip_limit")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
	assert.Equal(t, "per_ip_limit", resp.Context["reason"])
}

func TestMiddlewareAllErrorTypes(t *testing.T) {
	tests := []struct {
		name       string
		err        *apperrors.Error
		wantStatus int
	}{
		{"validation", apperrors.ValidationError("invalid"), http.StatusBadRequest},
		{"not_found", apperrors.NotFoundError("missing"), http.StatusNotFound},
		{"rate_limited", apperrors.RateLimitedError("slow down"), http.StatusTooManyRequests},
		{"unavailable", apperrors.UnavailableError("full"), http.StatusServiceUnavailable},
		{"internal", apperrors.InternalError("failed", errors.New("cause")), http.StatusInternalServerError},
		{"external", apperrors.ExternalError("redis failed", errors.New("timeout")), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext()

			handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
				return tt.err
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.err.Type, decodeErrorResponse(t, rec).Type)
		})
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	c, _ := newTestContext()

	var got string
	handler := correlationMiddleware(func(c echo.Context) error {
		got, _ = correlation.ID(c.Request().Context())
		return nil
	})

	require.NoError(t, handler(c))
	assert.Len(t, got, 8)
}

func TestHandleErrorWithNil(t *testing.T) {
	c, _ := newTestContext()
	assert.NoError(t, HandleError(c, nil))
}

func TestHTTPErrorHandler_StructuresEchoErrors(t *testing.T) {
	c, rec := newTestContext()

	httpErrorHandler(echo.ErrNotFound, c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, apperrors.TypeNotFound, resp.Type)
	assert.Equal(t, "Not Found", resp.Error)
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		name     string
		httpErr  *echo.HTTPError
		wantType apperrors.ErrorType
	}{
		{"bad_request", echo.NewHTTPError(http.StatusBadRequest, "bad request"), apperrors.TypeValidation},
		{"not_found", echo.NewHTTPError(http.StatusNotFound, "not found"), apperrors.TypeNotFound},
		{"too_many_requests", echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), apperrors.TypeRateLimited},
		{"service_unavailable", echo.NewHTTPError(http.StatusServiceUnavailable, "unavailable"), apperrors.TypeUnavailable},
		{"bad_gateway", echo.NewHTTPError(http.StatusBadGateway, "bad gateway"), apperrors.TypeExternal},
		{"method_not_allowed", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), apperrors.TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, WrapHTTPError(tt.httpErr).Type)
		})
	}
}

func TestWrapHTTPErrorWithInternalCause(t *testing.T) {
	cause := errors.New("underlying cause")
	httpErr := echo.NewHTTPError(http.StatusInternalServerError, "wrapped")
	httpErr.Internal = cause

	err := WrapHTTPError(httpErr)

	assert.Equal(t, apperrors.TypeInternal, err.Type)
	assert.Equal(t, cause, err.Cause)
}

func TestWrapHTTPErrorWithNonStringMessage(t *testing.T) {
	err := WrapHTTPError(echo.NewHTTPError(http.StatusBadRequest, 12345))

	assert.Equal(t, "internal server error", err.Message)
	assert.Equal(t, apperrors.TypeValidation, err.Type)
}
