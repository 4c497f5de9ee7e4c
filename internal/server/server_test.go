package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-sorter/internal/config"
	"parcel-sorter/internal/events"
	"parcel-sorter/internal/orchestrator"
	"parcel-sorter/internal/sorting"
	"parcel-sorter/internal/storage/sqlite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := sqlite.NewAdapter(&sqlite.Config{DatabasePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := sorting.NewEngine(store, sorting.SystemClock{}, time.Minute)
	orch := orchestrator.New(engine, events.NewBus(), orchestrator.Options{})

	cfg := &config.Config{JWTSecret: testSecret}
	return New(store, engine, orch, cfg, nil)
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, s *Server, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRuleAPIRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", bearerToken(t), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, "GET", "/api/rules", tt.auth, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := newTestServer(t)

	token, err := GenerateToken(testSecret, "ops", -time.Hour)
	require.NoError(t, err)

	rec := doJSON(t, s, "GET", "/api/rules", "Bearer "+token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenSignedWithWrongSecretRejected(t *testing.T) {
	s := newTestServer(t)

	token, err := GenerateToken("another-secret-that-is-long-enough!!", "ops", time.Hour)
	require.NoError(t, err)

	rec := doJSON(t, s, "GET", "/api/rules", "Bearer "+token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRuleCRUD(t *testing.T) {
	s := newTestServer(t)
	auth := bearerToken(t)

	rule := sorting.Rule{
		ID:          "r-heavy",
		Name:        "Heavy parcels",
		Condition:   "Weight > 1000",
		TargetChute: "A01",
		Priority:    10,
		Method:      sorting.MethodWeight,
		Enabled:     true,
	}

	rec := doJSON(t, s, "POST", "/api/rules", auth, rule)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, "GET", "/api/rules/r-heavy", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got sorting.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, rule, got)

	rec = doJSON(t, s, "GET", "/api/rules", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []sorting.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rule.TargetChute = "A02"
	rec = doJSON(t, s, "PUT", "/api/rules/r-heavy", auth, rule)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, "GET", "/api/rules/r-heavy", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "A02", got.TargetChute)

	rec = doJSON(t, s, "DELETE", "/api/rules/r-heavy", auth, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, "GET", "/api/rules/r-heavy", auth, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRuleRejectedByValidationGate(t *testing.T) {
	s := newTestServer(t)
	auth := bearerToken(t)

	tests := []struct {
		name string
		rule sorting.Rule
	}{
		{
			name: "denylisted construct",
			rule: sorting.Rule{ID: "r1", Name: "bad", Condition: "eval(Weight)", TargetChute: "A01", Method: sorting.MethodFreeForm},
		},
		{
			name: "missing target chute",
			rule: sorting.Rule{ID: "r2", Name: "bad", Condition: "Weight > 1", Method: sorting.MethodWeight},
		},
		{
			name: "priority out of range",
			rule: sorting.Rule{ID: "r3", Name: "bad", Condition: "Weight > 1", TargetChute: "A01", Priority: 10000, Method: sorting.MethodWeight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, "POST", "/api/rules", auth, tt.rule)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestUpdateMissingRuleIs404(t *testing.T) {
	s := newTestServer(t)
	auth := bearerToken(t)

	rule := sorting.Rule{ID: "ghost", Name: "g", Condition: "Weight > 1", TargetChute: "A01", Method: sorting.MethodWeight}
	rec := doJSON(t, s, "PUT", "/api/rules/ghost", auth, rule)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, "DELETE", "/api/rules/ghost", auth, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateParcel(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/parcels", "", createParcelRequest{ParcelID: "P001", CartNumber: "C7"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, s, "POST", "/parcels", "", createParcelRequest{ParcelID: "P001"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, s, "POST", "/parcels", "", createParcelRequest{CartNumber: "C7"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestForUnknownParcel(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/parcels/nope/measurement", "", sorting.Measurement{Barcode: "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, "POST", "/parcels/nope/ocr", "", sorting.OCRData{FirstSegmentCode: "64"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest("POST", "/parcels/nope/api-response", bytes.NewBufferString(`{"route":"EXPRESS"}`))
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}

func TestIngestForKnownParcel(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/parcels", "", createParcelRequest{ParcelID: "P001", CartNumber: "C7"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, s, "POST", "/parcels/P001/ocr", "", sorting.OCRData{FirstSegmentCode: "641"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	req := httptest.NewRequest("POST", "/parcels/P001/api-response", bytes.NewBufferString(`{"route":"EXPRESS"}`))
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusAccepted, rec2.Code)

	rec = doJSON(t, s, "POST", "/parcels/P001/measurement", "", sorting.Measurement{Barcode: "641234"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
