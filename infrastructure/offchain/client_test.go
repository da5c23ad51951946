package offchain_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/infrastructure/offchain"
	pkgerrors "artion-backend/pkg/errors"
)

func newClient(url string) *offchain.Client {
	return offchain.NewClient(url, time.Second, offchain.DefaultBreakerConfig(), zap.NewNop())
}

func TestCreateBundle_Success(t *testing.T) {
	// Arrange
	var got ports.CreateBundleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bundle/createBundle", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":"bundle-42"}`))
	}))
	defer server.Close()

	req := ports.CreateBundleRequest{
		Name:  "My Bundle",
		Price: 1.5,
		Items: []ports.BundleItem{{Address: "0xaa", TokenID: "7", Supply: 2}},
	}

	// Act
	bundleID, err := newClient(server.URL+"/").CreateBundle(context.Background(), req, "token-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "bundle-42", bundleID)
	assert.Equal(t, req, got)
}

func TestCreateBundle_FailedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"failed","data":"name taken"}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).CreateBundle(context.Background(), ports.CreateBundleRequest{Name: "x"}, "t")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	assert.Contains(t, err.Error(), "name taken")
}

func TestCreateBundle_MissingBundleID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":""}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).CreateBundle(context.Background(), ports.CreateBundleRequest{Name: "x"}, "t")

	assert.Error(t, err)
}

func TestCreateBundle_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newClient(server.URL).CreateBundle(context.Background(), ports.CreateBundleRequest{Name: "x"}, "bad")

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))
}

func TestDeleteBundle_SendsBundleID(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bundle/removeBundle", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"status":"success","data":null}`))
	}))
	defer server.Close()

	err := newClient(server.URL).DeleteBundle(context.Background(), "bundle-42", "t")

	require.NoError(t, err)
	assert.Equal(t, "bundle-42", body["bundleID"])
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	// Arrange
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := offchain.NewClient(server.URL, time.Second, offchain.BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}, zap.NewNop())

	// Act
	for i := 0; i < 2; i++ {
		err := client.DeleteBundle(context.Background(), "b", "t")
		require.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	}
	err := client.DeleteBundle(context.Background(), "b", "t")

	// Assert
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open breaker short-circuits")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"failed","data":"bad"}`))
	}))
	defer server.Close()

	client := offchain.NewClient(server.URL, time.Second, offchain.BreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 2,
	}, zap.NewNop())

	for i := 0; i < 4; i++ {
		err := client.DeleteBundle(context.Background(), "b", "t")
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClient_TimeoutsCountAgainstBreaker(t *testing.T) {
	// Arrange
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := offchain.NewClient(server.URL, 20*time.Millisecond, offchain.BreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 2,
	}, zap.NewNop())

	// Act
	for i := 0; i < 2; i++ {
		err := client.DeleteBundle(context.Background(), "b", "t")
		require.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTimeout), "got %v", err)
	}
	err := client.DeleteBundle(context.Background(), "b", "t")

	// Assert
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
