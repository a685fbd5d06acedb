package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/handlers/auth"
)

func TestAuthJWT(t *testing.T) {
	auth.SetSecret("middleware-secret")
	t.Cleanup(func() { auth.SetSecret("") })

	token, err := auth.IssueToken(&core.User{Subject: "github:7", Login: "remi"})
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := Claims(r.Context())
		if !ok {
			t.Error("claims missing from context")
			return
		}
		seen = claims.Login
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthJWT(next)

	testCases := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"no token", "Bearer", http.StatusUnauthorized},
		{"invalid token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.wantCode {
				t.Errorf("expected status %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.wantCode == http.StatusOK && seen != "remi" {
				t.Errorf("handler saw login %q", seen)
			}
		})
	}
}
