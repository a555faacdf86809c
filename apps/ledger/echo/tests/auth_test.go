package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func Test_authApi_login(t *testing.T) {
	ta := setup(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("LocalMemories"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword(): %v", err)
	}
	ta.conf.Ledger.AdminPasswordHash = string(hash)

	authFailed := marshallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "empty body", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "invalid request", "fields": {"username": "this field is required", "password": "this field is required"}}`),
		},
		{
			name: "unknown username", body: []byte(`{"username": "ghost", "password": "LocalMemories"}`),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "wrong password", body: []byte(`{"username": "admin", "password": "nope"}`),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "success", body: []byte(`{"username": "admin", "password": "LocalMemories"}`),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/auth/login", "", tt.body)
			ta.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var res struct {
					Token string `json:"token"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
					t.Fatalf("decoding response: %v", err)
				}
				if res.Token == "" {
					t.Error("empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_login_noHashConfigured(t *testing.T) {
	ta := setup(t) // AdminPasswordHash left empty

	req, rec := newAuthRequest(http.MethodPost, "/v1/auth/login", "", []byte(`{"username": "admin", "password": "anything"}`))
	ta.app.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %v; want %v", rec.Code, http.StatusBadRequest)
	}
}
