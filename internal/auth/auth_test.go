package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

type stubUsers map[int64]*domain.User

func (s stubUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := s[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func newTestApp(tokens *TokenManager, users UserLookup, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"code": domainErr.Code})
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tokens, users).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.JSON(fiber.Map{"userId": principal.UserID()})
	})
	app.Get("/me", handlers...)
	return app
}

func errorCode(t *testing.T, app *fiber.App, target, header string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, target, nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(body, &payload)
	return resp.StatusCode, payload.Code
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)

	raw, issued, err := tm.GenerateToken(7, domain.UserProfileAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	parsed, err := tm.ParseToken(raw)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed.UserID != 7 || parsed.Profile != domain.UserProfileAdmin {
		t.Fatalf("parsed = %+v", parsed)
	}
	if parsed.ExpiresAt.Unix() != issued.ExpiresAt.Unix() {
		t.Fatalf("expiry = %v, want %v", parsed.ExpiresAt, issued.ExpiresAt)
	}
}

func TestTokenRejectsTamperingAndExpiry(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	raw, _, err := tm.GenerateToken(7, domain.UserProfileUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := NewTokenManager("other", 1).ParseToken(raw); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}

	later := NewTokenManager("secret", 1)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := later.ParseToken(raw); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestMiddlewareAcceptsHeaderAndQueryToken(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	app := newTestApp(tm, stubUsers{7: {ID: 7, Profile: domain.UserProfileUser}})
	raw, _, _ := tm.GenerateToken(7, domain.UserProfileUser)

	if status, _ := errorCode(t, app, "/me", "Bearer "+raw); status != fiber.StatusOK {
		t.Fatalf("header auth status = %d", status)
	}
	if status, _ := errorCode(t, app, "/me?token="+raw, ""); status != fiber.StatusOK {
		t.Fatalf("query auth status = %d", status)
	}
}

func TestMiddlewareRejections(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	app := newTestApp(tm, stubUsers{})
	unknown, _, _ := tm.GenerateToken(99, domain.UserProfileUser)

	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"unknown user": "Bearer " + unknown,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			status, code := errorCode(t, app, "/me", header)
			if status != fiber.StatusUnauthorized || code != apperrors.CodeUnauthorized {
				t.Fatalf("status = %d code = %s", status, code)
			}
		})
	}
}

func TestRequireProfile(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	users := stubUsers{
		1: {ID: 1, Profile: domain.UserProfileAdmin},
		2: {ID: 2, Profile: domain.UserProfileUser},
	}
	app := newTestApp(tm, users, RequireProfile(domain.UserProfileAdmin))

	admin, _, _ := tm.GenerateToken(1, domain.UserProfileAdmin)
	if status, _ := errorCode(t, app, "/me", "Bearer "+admin); status != fiber.StatusOK {
		t.Fatalf("admin status = %d", status)
	}

	agent, _, _ := tm.GenerateToken(2, domain.UserProfileUser)
	status, code := errorCode(t, app, "/me", "Bearer "+agent)
	if status != fiber.StatusForbidden || code != apperrors.CodeForbidden {
		t.Fatalf("agent status = %d code = %s", status, code)
	}
}
