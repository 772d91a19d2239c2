package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/storefront/identity-service/internal/core/domain"
)

type stubVerifier struct {
	token     string
	principal *domain.Principal
}

func (s stubVerifier) Verify(token string) (*domain.Principal, error) {
	if token != s.token {
		return nil, domain.ErrInvalidCredentials
	}
	return s.principal, nil
}

var testVerifier = stubVerifier{
	token: "good-token",
	principal: &domain.Principal{
		UserID:   "u1",
		Username: "alice",
		Roles:    []string{"Admin", "User"},
	},
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Auth(testVerifier)(func(c echo.Context) error {
		called = true
		if c.Get("username") != "alice" {
			t.Fatalf("username not set")
		}
		if c.Get("user_id") != "u1" {
			t.Fatalf("user_id not set")
		}
		roles, _ := c.Get("roles").([]string)
		if len(roles) != 2 {
			t.Fatalf("roles not set: %v", c.Get("roles"))
		}
		if p, _ := c.Get("principal").(*domain.Principal); p == nil || p.Username != "alice" {
			t.Fatalf("principal not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token good-token"},
		{"empty token", "Bearer "},
		{"unknown token", "Bearer forged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := Auth(testVerifier)(func(c echo.Context) error {
				t.Fatalf("should not reach next")
				return nil
			})

			err := handler(c)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 HTTPError, got %v", err)
			}
		})
	}
}
