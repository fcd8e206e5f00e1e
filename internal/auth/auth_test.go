package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/switchyard/internal/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIssueVerify(t *testing.T) {
	tokens := NewTokens("s3cret", time.Hour)
	tok, exp, err := tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}
	got, err := tokens.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != "user-1" {
		t.Errorf("Verify = %q, want user-1", got)
	}
}

func TestVerify_Rejects(t *testing.T) {
	tokens := NewTokens("s3cret", time.Hour)
	good, _, _ := tokens.Issue("user-1")

	expired := NewTokens("s3cret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue("user-1")

	otherSecret, _, _ := NewTokens("different", time.Hour).Issue("user-1")

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1", Issuer: "elsewhere"})
	foreignTok, _ := foreign.SignedString([]byte("s3cret"))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"expired", old},
		{"wrong secret", otherSecret},
		{"wrong issuer", foreignTok},
		{"truncated", good[:len(good)-4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Verify(tt.token)
			if !errors.Is(err, apperr.ErrUnauthenticated) {
				t.Errorf("err = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		query   string
		want    string
		wantErr bool
	}{
		{name: "header", header: "Bearer abc", want: "abc"},
		{name: "lower-case scheme", header: "bearer abc", want: "abc"},
		{name: "query fallback", query: "?token=xyz", want: "xyz"},
		{name: "header wins", header: "Bearer abc", query: "?token=xyz", want: "abc"},
		{name: "wrong scheme", header: "Basic abc", wantErr: true},
		{name: "missing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := BearerToken(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("s3cret", time.Hour)
	r := gin.New()
	r.GET("/me", tokens.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	tok, _, _ := tokens.Issue("user-9")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "user-9" {
		t.Errorf("authorized: status %d body %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status %d, want 401", w.Code)
	}
	var body apperr.Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Kind != apperr.KindUnauthorized {
		t.Errorf("kind = %q, want unauthorized", body.Kind)
	}
}
