package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "nftgate/internal/errors"
	"nftgate/internal/license"
	"nftgate/internal/oracle"
	"nftgate/internal/shared/testutil"
)

type MockLicensing struct {
	mock.Mock
}

func (m *MockLicensing) IssueChallenge(ctx context.Context) license.LicensingRequest {
	args := m.Called(ctx)
	return args.Get(0).(license.LicensingRequest)
}

func (m *MockLicensing) ValidateResponse(ctx context.Context, response *license.LicensingResponse) (bool, error) {
	args := m.Called(ctx, response)
	return args.Bool(0), args.Error(1)
}

func newLicenseRouter(licensing Licensing) http.Handler {
	logger, _ := testutil.NewCaptureLogger()
	h := NewLicenseHandler(licensing, apierrors.NewErrorHandler(logger, false), logger)

	r := chi.NewRouter()
	r.Mount("/api/license", h.Routes())
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLicenseHandler_IssueChallenge(t *testing.T) {
	licensing := new(MockLicensing)
	licensing.On("IssueChallenge", mock.Anything).
		Return(license.LicensingRequest{ID: "req-1", Message: "Sign this\nnonce"})

	rec := post(t, newLicenseRouter(licensing), "/api/license/challenge", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "req-1", body["id"])
	assert.Equal(t, "Sign this\nnonce", body["message"])
	licensing.AssertExpectations(t)
}

func TestLicenseHandler_Verify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		valid      bool
		err        error
		wantStatus int
		wantValid  interface{}
		wantType   string
	}{
		{
			name:       "accepted",
			body:       `{"requestId":"r1","publicAddress":"0xabc","answerMessage":"0x01"}`,
			valid:      true,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:       "rejected",
			body:       `{"requestId":"r1"}`,
			valid:      false,
			wantStatus: http.StatusOK,
			wantValid:  false,
		},
		{
			name:       "oracle failure",
			body:       `{"requestId":"r1","publicAddress":"0xabc","answerMessage":"0x01"}`,
			err:        &license.OracleError{Address: "0xabc", Err: oracle.ErrOracleThrottled},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   apierrors.TypeOracleUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			licensing := new(MockLicensing)
			licensing.On("ValidateResponse", mock.Anything, mock.AnythingOfType("*license.LicensingResponse")).
				Return(tt.valid, tt.err)

			rec := post(t, newLicenseRouter(licensing), "/api/license/verify", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, body["type"])
				assert.NotContains(t, body, "valid")
			} else {
				assert.Equal(t, tt.wantValid, body["valid"])
			}
			licensing.AssertExpectations(t)
		})
	}
}

func TestLicenseHandler_VerifyUndecodableBody(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   "requestId=r1",
		"empty":      "",
		"wrong type": `{"requestId":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			licensing := new(MockLicensing)

			rec := post(t, newLicenseRouter(licensing), "/api/license/verify", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apierrors.TypeInvalidRequest, decodeBody(t, rec)["type"])
			licensing.AssertNotCalled(t, "ValidateResponse", mock.Anything, mock.Anything)
		})
	}
}

func TestLicenseHandler_VerifyBodyTooLarge(t *testing.T) {
	licensing := new(MockLicensing)
	body := `{"requestId":"` + strings.Repeat("a", maxResponseBody) + `"}`

	rec := post(t, newLicenseRouter(licensing), "/api/license/verify", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	licensing.AssertNotCalled(t, "ValidateResponse", mock.Anything, mock.Anything)
}

func TestLicenseHandler_EndToEnd(t *testing.T) {
	static := oracle.NewStatic(true)
	licenser, err := license.NewLicenser(static, license.WithPreamble("Prove you own the pass"))
	require.NoError(t, err)
	defer licenser.Close()

	router := newLicenseRouter(licenser)
	wallet := testutil.NewWallet(t)

	rec := post(t, router, "/api/license/challenge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var challenge license.LicensingRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &challenge))
	assert.True(t, strings.HasPrefix(challenge.Message, "Prove you own the pass\n"))

	answer, err := json.Marshal(license.LicensingResponse{
		RequestID:     challenge.ID,
		PublicAddress: wallet.UpperHex(),
		AnswerMessage: wallet.SignPersonal(t, challenge.Message),
	})
	require.NoError(t, err)

	rec = post(t, router, "/api/license/verify", string(answer))
	assert.Equal(t, true, decodeBody(t, rec)["valid"])

	rec = post(t, router, "/api/license/verify", string(answer))
	assert.Equal(t, false, decodeBody(t, rec)["valid"], "a challenge redeems once")

	assert.Len(t, static.Calls(), 1)
}

type fakeStore struct{ stats license.StoreStats }

func (f fakeStore) Stats() license.StoreStats { return f.stats }

type fakeOracle string

func (f fakeOracle) BreakerState() string { return string(f) }

func TestHealthHandler(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	stats := license.StoreStats{Outstanding: 2, Issued: 5, Consumed: 3}

	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(fakeStore{stats}, fakeOracle("closed"), "opensea", time.Now(), logger)
		rec := httptest.NewRecorder()
		h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, stats, resp.Requests)
		assert.Equal(t, OracleHealth{Kind: "opensea", Breaker: "closed"}, resp.Oracle)
		assert.Greater(t, resp.Runtime.Goroutines, 0)
	})

	t.Run("breaker open", func(t *testing.T) {
		h := NewHealthHandler(fakeStore{stats}, fakeOracle("open"), "onchain", time.Now(), logger)
		rec := httptest.NewRecorder()
		h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
		logs.RequireLogged(t, "health degraded", map[string]any{"breaker": "open"})
	})

	t.Run("live", func(t *testing.T) {
		h := NewHealthHandler(fakeStore{}, fakeOracle("disabled"), "mock", time.Now(), logger)
		rec := httptest.NewRecorder()
		h.LivenessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
		assert.Equal(t, "alive", decodeBody(t, rec)["status"])
	})
}

