package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenantEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, TenantFromContext(r.Context()))
	})
}

func TestTenantAuth_IssueAndParse(t *testing.T) {
	auth := NewTenantAuth("s3cret", "crm")

	token, err := auth.IssueToken("tenant-a", time.Hour)
	require.NoError(t, err)

	tenant, err := auth.ParseTenant(token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenant)

	_, err = auth.IssueToken("", time.Hour)
	assert.Error(t, err)
}

func TestTenantAuth_ParseRejects(t *testing.T) {
	auth := NewTenantAuth("s3cret", "crm")

	otherKey, err := NewTenantAuth("different", "crm").IssueToken("tenant-a", time.Hour)
	require.NoError(t, err)
	otherIssuer, err := NewTenantAuth("s3cret", "someone-else").IssueToken("tenant-a", time.Hour)
	require.NoError(t, err)
	noTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "crm",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": "tenant-a",
		"exp":       time.Now().Add(-time.Minute).Unix(),
		"iss":       "crm",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := map[string]string{
		"wrong key":      otherKey,
		"wrong issuer":   otherIssuer,
		"no tenant":      noTenant,
		"expired":        expired,
		"not a jwt":      "abc.def",
		"none algorithm": "eyJhbGciOiJub25lIn0.eyJ0ZW5hbnRfaWQiOiJ0ZW5hbnQtYSJ9.",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParseTenant(token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestTenantAuth_Middleware(t *testing.T) {
	auth := NewTenantAuth("s3cret", "")
	token, err := auth.IssueToken("tenant-a", time.Hour)
	require.NoError(t, err)
	h := auth.Middleware(tenantEcho())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "tenant-a"},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized, wantBody: `{"error":"missing bearer token"}`},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantBody: `{"error":"missing bearer token"}`},
		{name: "garbage", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantBody: `{"error":"invalid or expired token"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/campaigns", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestVendorSignature(t *testing.T) {
	body := `{"reference_id":"l-1","status":"delivered","message_id":"vm-1"}`
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	})

	tests := []struct {
		name       string
		secret     string
		signature  string
		wantStatus int
	}{
		{name: "valid", secret: "hook", signature: Sign("hook", []byte(body)), wantStatus: http.StatusOK},
		{name: "signed with other secret", secret: "hook", signature: Sign("other", []byte(body)), wantStatus: http.StatusUnauthorized},
		{name: "not hex", secret: "hook", signature: "zz", wantStatus: http.StatusUnauthorized},
		{name: "missing", secret: "hook", wantStatus: http.StatusUnauthorized},
		{name: "check disabled", secret: "", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/campaigns/delivery-receipt", strings.NewReader(body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			VendorSignature(tt.secret)(echo).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, body, rec.Body.String())
			}
		})
	}
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/campaigns/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/campaigns/{id}", "204"))
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/campaigns/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/campaigns/{id}", "204"))
	assert.Equal(t, 3.0, after-before)
}
