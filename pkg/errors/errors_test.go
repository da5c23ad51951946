package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "artion-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAppError_UnwrapAndType(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("provision: %w", apperrors.NewExternalError("bundle-api", cause))

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, apperrors.GetAppError(err).HTTPStatus)
}

func TestErrorHandler_Handle(t *testing.T) {
	handler := apperrors.NewErrorHandler(zap.NewNop(), false)

	t.Run("app error keeps its status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/x/commit", nil)

		handler.Handle(rec, req, apperrors.NewConflictError("saga is busy").WithCode("SAGA_BUSY"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"SAGA_BUSY"`)
	})

	t.Run("plain error is hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		handler.Handle(rec, req, stderrors.New("secret detail"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret detail")
	})
}
