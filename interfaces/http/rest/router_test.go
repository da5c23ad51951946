package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/application/ports/mocks"
	"artion-backend/application/sagas"
	"artion-backend/application/services"
	"artion-backend/domain/core/entities"
	"artion-backend/infrastructure/config"
	"artion-backend/infrastructure/observability"
	"artion-backend/infrastructure/persistence/memory"
	"artion-backend/interfaces/http/rest"
	"artion-backend/pkg/auth"
)

var (
	account     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	marketplace = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	contractA   = "0xa000000000000000000000000000000000000001"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type testServer struct {
	handler   http.Handler
	service   *mocks.MockBundleService
	ledger    *mocks.FakeLedger
	orphans   *memory.OrphanStore
	validator *auth.JWTValidator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	ledger := mocks.NewFakeLedger(account)
	service := new(mocks.MockBundleService)
	publisher := new(mocks.MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	orphans := memory.NewOrphanStore(ports.SystemClock{})

	registry := sagas.NewRegistry(sagas.CoordinatorDeps{
		Prober: services.NewAuthorizationProber(ledger, ledger, marketplace, 4, nil, logger),
		Driver: services.NewAuthorizationDriver(ledger, marketplace, 4, nil, logger),
		Saga: sagas.NewBundleCommitSaga(
			services.NewBundleProvisioner(service, nil, logger),
			services.NewOnchainCommitter(ledger, nil, logger),
			nil, logger),
		Publisher: publisher,
		Orphans:   orphans,
		Logger:    logger,
	}, time.Hour)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "test-secret", Issuer: "artion-backend"})
	require.NoError(t, err)

	cfg := config.Default()
	router := rest.NewRouter(registry, orphans, validator, observability.NewCollector("artion"), cfg, logger)

	return &testServer{
		handler:   router.Setup(),
		service:   service,
		ledger:    ledger,
		orphans:   orphans,
		validator: validator,
	}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.validator.GenerateToken(userID, "", time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func openSession(t *testing.T, s *testServer, token string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/sessions", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var opened struct {
		SessionID string `json:"session_id"`
	}
	decodeData(t, rec, &opened)
	require.NotEmpty(t, opened.SessionID)
	return opened.SessionID
}

func TestRouter_FullBundleFlow(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	token := s.token(t, "user-1")
	s.service.On("CreateBundle", mock.Anything, mock.MatchedBy(func(req ports.CreateBundleRequest) bool {
		return req.Name == "Pair" && len(req.Items) == 1 && req.Items[0].Supply == 3
	}), token).Return("bundle-1", nil)

	sessionID := openSession(t, s, token)
	base := "/api/v1/sessions/" + sessionID

	// Act: select an unapproved asset
	rec := s.do(t, http.MethodPost, base+"/selection/items", token, entities.CandidateItem{
		ContractAddress: contractA,
		TokenID:         "7",
		Supply:          5,
		HolderSupply:    3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view struct {
		State      string `json:"state"`
		NextAction string `json:"next_action"`
	}
	decodeData(t, rec, &view)
	assert.Equal(t, string(sagas.StateAwaitingApproval), view.State)
	assert.Equal(t, sagas.ActionApprove, view.NextAction)

	// Act: approve
	rec = s.do(t, http.MethodPost, base+"/approve", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &view)
	assert.Equal(t, string(sagas.StateReady), view.State)

	// Act: commit
	rec = s.do(t, http.MethodPost, base+"/commit", token, map[string]string{"name": "Pair", "price": "1.5"})

	// Assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Outcome entities.SagaOutcome `json:"outcome"`
		View    struct {
			State string `json:"state"`
		} `json:"view"`
	}
	decodeData(t, rec, &result)
	assert.Equal(t, entities.OutcomeCommitted, result.Outcome.Kind)
	assert.Equal(t, "bundle-1", result.Outcome.BundleID)
	assert.Equal(t, string(sagas.StateCommitted), result.View.State)

	listings := s.ledger.Listings()
	require.Len(t, listings, 1)
	assert.Equal(t, "bundle-1", listings[0].BundleID)
	assert.Equal(t, "1500000000000000000", listings[0].Price.String())
	s.service.AssertExpectations(t)
}

func TestRouter_CommitBeforeApprovalIsConflict(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user-1")
	base := "/api/v1/sessions/" + openSession(t, s, token)

	rec := s.do(t, http.MethodPost, base+"/selection/items", token, entities.CandidateItem{ContractAddress: contractA, TokenID: "1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/commit", token, map[string]string{"name": "Pair", "price": "1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_READY", body.Code)
	s.service.AssertNotCalled(t, "CreateBundle", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_InvalidInput(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user-1")
	base := "/api/v1/sessions/" + openSession(t, s, token)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"bad contract", http.MethodPost, base + "/selection/items", entities.CandidateItem{ContractAddress: "nope", TokenID: "1"}},
		{"bad token id", http.MethodPost, base + "/selection/items", entities.CandidateItem{ContractAddress: contractA, TokenID: "-1"}},
		{"long name", http.MethodPost, base + "/commit", map[string]string{"name": "this name is far too long", "price": "1"}},
		{"zero price", http.MethodPost, base + "/commit", map[string]string{"name": "ok", "price": "0"}},
		{"unknown field", http.MethodPost, base + "/commit", map[string]string{"name": "ok", "price": "1", "extra": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_SessionsAreScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	sessionID := openSession(t, s, s.token(t, "user-1"))

	rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID, s.token(t, "user-2"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CloseSession(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user-1")
	base := "/api/v1/sessions/" + openSession(t, s, token)

	rec := s.do(t, http.MethodDelete, base, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RemoveItemReturnsToIdle(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user-1")
	base := "/api/v1/sessions/" + openSession(t, s, token)

	rec := s.do(t, http.MethodPost, base+"/selection/items", token, entities.CandidateItem{ContractAddress: contractA, TokenID: "9"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/selection/items/"+contractA+"/9", token, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view struct {
		State     string        `json:"state"`
		Selection []interface{} `json:"selection"`
	}
	decodeData(t, rec, &view)
	assert.Equal(t, string(sagas.StateIdle), view.State)
	assert.Empty(t, view.Selection)
}

func TestRouter_Orphans(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user-1")
	require.NoError(t, s.orphans.Record(context.Background(), entities.OrphanedBundle{BundleID: "bundle-9", Reason: "delete failed"}))

	rec := s.do(t, http.MethodGet, "/api/v1/orphans", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var open []entities.OrphanedBundle
	decodeData(t, rec, &open)
	require.Len(t, open, 1)
	assert.Equal(t, "bundle-9", open[0].BundleID)

	rec = s.do(t, http.MethodPost, "/api/v1/orphans/bundle-9/resolve", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/orphans/bundle-9x/resolve", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "artion_http_requests_total")
}
