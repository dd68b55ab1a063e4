//go:build integration

package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"ministry-backend/internal/auth"
	"ministry-backend/internal/config"
	"ministry-backend/internal/engine"
	"ministry-backend/internal/metadata"
	"ministry-backend/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{
		Host:     "localhost",
		Port:     5433,
		User:     "ministry",
		Password: "ministry",
		Name:     "ministry_test",
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("connect to test db: %v", err)
	}
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s
}

func testApp(t *testing.T, s *store.Store) *fiber.App {
	t.Helper()
	reg := metadata.NewRegistry()
	reg.Load(metadata.Schema())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var appErr *engine.AppError
			if errors.As(err, &appErr) {
				return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
			}
			log.Printf("ERROR: %v", err)
			return c.Status(500).JSON(engine.ErrorResponse{
				Error: &engine.AppError{Code: "INTERNAL_ERROR", Message: "Internal server error"},
			})
		},
	})
	authH := auth.NewAuthHandler(s, "test-secret")
	auth.RegisterAuthRoutes(app, authH)
	engine.RegisterRoutes(app, engine.NewHandler(s, reg))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("parse response: %v (%s)", err, b)
	}
	return out
}

func cleanup(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	for _, table := range []string{"assets", "locations", "stats", "calendar_events", "people", "churches"} {
		if _, err := store.Exec(ctx, s.Pool, "DELETE FROM "+table); err != nil {
			t.Fatalf("cleanup %s: %v", table, err)
		}
	}
	_, _ = store.Exec(ctx, s.Pool, "DELETE FROM users WHERE username != 'admin'")
}

func TestCreateThenGet_RoundTrip(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	payload := map[string]any{
		"name":        "Grace Chapel",
		"address":     "12 River Rd",
		"city":        "Springfield",
		"pastor_name": "J. Smith",
	}
	resp := doRequest(t, app, "POST", "/api/Church", payload)
	if resp.StatusCode != 201 {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[map[string]any](t, resp)
	id := created["id"]
	if id == nil {
		t.Fatalf("expected generated id, got %+v", created)
	}

	resp = doRequest(t, app, "GET", fmt.Sprintf("/api/Church/%v", id), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	record := decodeJSON[map[string]any](t, resp)
	for k, v := range payload {
		if record[k] != v {
			t.Fatalf("round-trip mismatch on %s: sent %v, got %v", k, v, record[k])
		}
	}
}

func TestQuoteCharacters_RoundTripVerbatim(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	tricky := `O'Brien's "Annex"; -- DROP TABLE locations`
	resp := doRequest(t, app, "POST", "/api/Location", map[string]any{
		"name":    tricky,
		"address": "1 Main St",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	id := decodeJSON[map[string]any](t, resp)["id"]

	resp = doRequest(t, app, "GET", fmt.Sprintf("/api/Location/%v", id), nil)
	record := decodeJSON[map[string]any](t, resp)
	if record["name"] != tricky {
		t.Fatalf("metacharacters mangled: got %q", record["name"])
	}
}

func TestGetUpdateDelete_MissingID_Return404(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	resp := doRequest(t, app, "GET", "/api/Church/999999", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("get: expected 404, got %d", resp.StatusCode)
	}

	// Zero affected rows is a 404, never a silent success
	resp = doRequest(t, app, "PUT", "/api/Church/999999", map[string]any{"city": "Nowhere"})
	if resp.StatusCode != 404 {
		t.Fatalf("update: expected 404, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, "DELETE", "/api/Church/999999", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestList_EmptyTableReturnsEmptyArray(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	cleanup(t, s) // start from an empty table even on a reused database
	defer cleanup(t, s)
	app := testApp(t, s)

	resp := doRequest(t, app, "GET", "/api/Calendar", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	rows := decodeJSON[[]map[string]any](t, resp)
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty array, got %v", rows)
	}
}

func TestAssetLocationScenario(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	// 1. Create the location
	resp := doRequest(t, app, "POST", "/api/Location", map[string]any{
		"name":           "HQ",
		"address":        "1 Main St",
		"contact_person": "A",
		"contact_phone":  "000",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("create location: expected 201, got %d", resp.StatusCode)
	}
	locID := decodeJSON[map[string]any](t, resp)["id"]

	// 2. Asset referencing a location that does not exist -> 400
	resp = doRequest(t, app, "POST", "/api/Asset", map[string]any{
		"location_id": 999999,
		"name":        "Projector",
	})
	if resp.StatusCode != 400 {
		t.Fatalf("bad reference: expected 400, got %d", resp.StatusCode)
	}
	errResp := decodeJSON[engine.ErrorResponse](t, resp)
	if errResp.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %s", errResp.Error.Code)
	}

	// 3. Asset with the valid location -> 201, message names the location
	resp = doRequest(t, app, "POST", "/api/Asset", map[string]any{
		"location_id": locID,
		"name":        "Projector",
		"category":    "AV",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("create asset: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[map[string]any](t, resp)
	msg, _ := created["message"].(string)
	if !bytes.Contains([]byte(msg), []byte("HQ")) {
		t.Fatalf("expected message to name the location, got %q", msg)
	}

	// 4. Deleting the location while the asset references it -> 409
	resp = doRequest(t, app, "DELETE", fmt.Sprintf("/api/Location/%v", locID), nil)
	if resp.StatusCode != 409 {
		t.Fatalf("delete referenced location: expected 409, got %d", resp.StatusCode)
	}
	errResp = decodeJSON[engine.ErrorResponse](t, resp)
	if errResp.Error.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", errResp.Error.Code)
	}

	// 5. After the asset is gone, the delete succeeds
	assetID := created["id"]
	resp = doRequest(t, app, "DELETE", fmt.Sprintf("/api/Asset/%v", assetID), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("delete asset: expected 200, got %d", resp.StatusCode)
	}
	resp = doRequest(t, app, "DELETE", fmt.Sprintf("/api/Location/%v", locID), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("delete location: expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateDuplicate_Returns409(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	body := map[string]any{"name": "First Baptist"}
	if resp := doRequest(t, app, "POST", "/api/Church", body); resp.StatusCode != 201 {
		t.Fatalf("first insert: expected 201, got %d", resp.StatusCode)
	}

	resp := doRequest(t, app, "POST", "/api/Church", body)
	if resp.StatusCode != 409 {
		t.Fatalf("duplicate insert: expected 409, got %d", resp.StatusCode)
	}
	errResp := decodeJSON[engine.ErrorResponse](t, resp)
	if errResp.Error.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", errResp.Error.Code)
	}
}

func TestLogin_DoesNotDiscloseWhichCredentialFailed(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	// Create a user through the engine so the password is hashed at rest
	resp := doRequest(t, app, "POST", "/api/User", map[string]any{
		"username": "shepherd",
		"password": "flock123",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("create user: expected 201, got %d", resp.StatusCode)
	}

	readCase := func(body map[string]any) (int, string) {
		resp := doRequest(t, app, "POST", "/Login", body)
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	wrongPwStatus, wrongPwBody := readCase(map[string]any{"username": "shepherd", "password": "nope"})
	unknownStatus, unknownBody := readCase(map[string]any{"username": "ghost", "password": "nope"})

	if wrongPwStatus != 401 || unknownStatus != 401 {
		t.Fatalf("expected 401/401, got %d/%d", wrongPwStatus, unknownStatus)
	}
	if wrongPwBody != unknownBody {
		t.Fatalf("responses must be indistinguishable:\n%s\n%s", wrongPwBody, unknownBody)
	}

	// Correct credentials succeed and carry tokens
	status, body := readCase(map[string]any{"username": "shepherd", "password": "flock123"})
	if status != 200 {
		t.Fatalf("login: expected 200, got %d: %s", status, body)
	}
	var ok struct {
		Message      string `json:"message"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal([]byte(body), &ok); err != nil {
		t.Fatalf("parse login response: %v", err)
	}
	if ok.AccessToken == "" || ok.RefreshToken == "" {
		t.Fatalf("missing tokens in %s", body)
	}
}

func TestUserPasswords_NeverReturnedByReads(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	resp := doRequest(t, app, "POST", "/api/User", map[string]any{
		"username": "deacon",
		"password": "keys456",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("create user: expected 201, got %d", resp.StatusCode)
	}
	id := decodeJSON[map[string]any](t, resp)["id"]

	resp = doRequest(t, app, "GET", fmt.Sprintf("/api/User/%v", id), nil)
	record := decodeJSON[map[string]any](t, resp)
	if _, present := record["password"]; present {
		t.Fatalf("password column leaked: %+v", record)
	}

	resp = doRequest(t, app, "GET", "/api/User", nil)
	for _, row := range decodeJSON[[]map[string]any](t, resp) {
		if _, present := row["password"]; present {
			t.Fatalf("password column leaked in list: %+v", row)
		}
	}
}

func TestListFilters(t *testing.T) {
	s := testStore(t)
	defer s.Close()
	defer cleanup(t, s)
	app := testApp(t, s)

	cities := []string{"Springfield", "Springfield", "Shelbyville"}
	for i, city := range cities {
		resp := doRequest(t, app, "POST", "/api/Church", map[string]any{
			"name": fmt.Sprintf("Assembly %d", i),
			"city": city,
		})
		if resp.StatusCode != 201 {
			t.Fatalf("seed church: got %d", resp.StatusCode)
		}
	}

	resp := doRequest(t, app, "GET", "/api/Church?filter[city]=Springfield", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("filtered list: expected 200, got %d", resp.StatusCode)
	}
	if rows := decodeJSON[[]map[string]any](t, resp); len(rows) != 2 {
		t.Fatalf("expected 2 Springfield rows, got %d", len(rows))
	}

	resp = doRequest(t, app, "GET", "/api/Church?sort=-church_id&per_page=2", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	rows := decodeJSON[[]map[string]any](t, resp)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows with per_page=2, got %d", len(rows))
	}
}
