package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"ministry-backend/internal/engine"
	"ministry-backend/internal/store"
)

// unknownUserHash is a throwaway bcrypt hash at the same cost as stored
// credentials. It is compared against when the username does not exist,
// so both 401 paths pay for one bcrypt comparison.
const unknownUserHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret}
}

// Login handles POST /Login and POST /api/auth/login.
// Unknown username and wrong password produce the same 401; the response
// never discloses which case occurred.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Username == "" || body.Password == "" {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Username and password are required")
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	user, err := h.findUserByUsername(ctx, body.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			CheckPassword(body.Password, unknownUserHash)
			return engine.UnauthorizedError("Invalid username or password")
		}
		// Infrastructure failures are not a credential outcome
		return err
	}

	hash, _ := user["password"].(string)
	if !CheckPassword(body.Password, hash) {
		return engine.UnauthorizedError("Invalid username or password")
	}

	userID := fmt.Sprint(user["user_id"])
	username, _ := user["username"].(string)
	role, _ := user["role"].(string)

	pair, err := h.generateTokenPair(ctx, userID, username, role)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message":       "Login successful",
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	row, err := store.QueryRow(ctx, h.store.Pool,
		`SELECT rt.id, rt.user_id, rt.expires_at, u.username, u.role
		 FROM refresh_tokens rt
		 JOIN users u ON u.user_id = rt.user_id
		 WHERE rt.token = $1`, body.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.UnauthorizedError("Invalid refresh token")
		}
		return err
	}

	expiresAt, _ := row["expires_at"].(time.Time)
	if time.Now().After(expiresAt) {
		_, _ = store.Exec(ctx, h.store.Pool,
			"DELETE FROM refresh_tokens WHERE token = $1", body.RefreshToken)
		return engine.UnauthorizedError("Refresh token expired")
	}

	// Rotation: the used token is spent regardless of what follows
	_, _ = store.Exec(ctx, h.store.Pool,
		"DELETE FROM refresh_tokens WHERE id = $1", row["id"])

	userID := fmt.Sprint(row["user_id"])
	username, _ := row["username"].(string)
	role, _ := row["role"].(string)

	pair, err := h.generateTokenPair(ctx, userID, username, role)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	if _, err := store.Exec(ctx, h.store.Pool,
		"DELETE FROM refresh_tokens WHERE token = $1", body.RefreshToken); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
// /Login is the historical top-level route; /api/auth/login is the
// canonical one.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	app.Post("/Login", h.Login)

	grp := app.Group("/api/auth")
	grp.Post("/login", h.Login)
	grp.Post("/refresh", h.Refresh)
	grp.Post("/logout", h.Logout)
}

// --- helpers ---

func (h *AuthHandler) findUserByUsername(ctx context.Context, username string) (map[string]any, error) {
	return store.QueryRow(ctx, h.store.Pool,
		"SELECT user_id, username, password, role FROM users WHERE username = $1", username)
}

func (h *AuthHandler) generateTokenPair(ctx context.Context, userID, username, role string) (*TokenPair, error) {
	accessToken, err := GenerateAccessToken(userID, username, role, h.jwtSecret)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	refreshToken := GenerateRefreshToken()
	expiresAt := time.Now().Add(RefreshTokenTTL)

	_, err = store.Exec(ctx, h.store.Pool,
		`INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, refreshToken, expiresAt)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to store refresh token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
