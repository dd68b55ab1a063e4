package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ministry-backend/internal/metadata"
	"ministry-backend/internal/store"
)

// Handler is the generic CRUD engine. One instance serves every entity in
// the registry; per-entity behavior comes from the descriptor and the
// optional pre-write hooks.
type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	hooks    map[string]PreWriteHook
}

func NewHandler(s *store.Store, reg *metadata.Registry) *Handler {
	return &Handler{store: s, registry: reg, hooks: DefaultHooks()}
}

// SetHook registers a pre-write hook for an entity, replacing any default.
func (h *Handler) SetHook(entityName string, hook PreWriteHook) {
	h.hooks[normalizeName(entityName)] = hook
}

// List handles GET /api/:entity
func (h *Handler) List(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	plan, err := ParseQueryParams(c, entity)
	if err != nil {
		return err
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	sql, params := BuildListSQL(plan)
	rows, err := store.QueryRows(ctx, h.store.Pool, sql, params...)
	if err != nil {
		return fmt.Errorf("list %s: %w", entity.Name, err)
	}

	// Empty result is success, not an error
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(rows)
}

// GetByID handles GET /api/:entity/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	sql, params := BuildGetSQL(entity, id)
	row, err := store.QueryRow(ctx, h.store.Pool, sql, params...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(entity.Name, c.Params("id")))
		}
		return fmt.Errorf("get %s/%d: %w", entity.Name, id, err)
	}

	return c.JSON(row)
}

// Create handles POST /api/:entity
func (h *Handler) Create(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	fields, validationErrs := ValidateWrite(entity, body, true)
	if len(validationErrs) > 0 {
		return respondError(c, ValidationError(validationErrs))
	}
	if ruleErrs := EvaluateRules(entity, fields, true); len(ruleErrs) > 0 {
		return respondError(c, ValidationError(ruleErrs))
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	note, err := h.runHook(ctx, entity, fields)
	if err != nil {
		return h.writeError(c, entity, err)
	}

	sql, params := BuildInsertSQL(entity, fields)
	row, err := store.QueryRow(ctx, h.store.Pool, sql, params...)
	if err != nil {
		return h.writeError(c, entity, fmt.Errorf("insert %s: %w", entity.Table, err))
	}

	msg := fmt.Sprintf("%s created", entity.Name)
	if note != "" {
		msg += " " + note
	}
	return c.Status(201).JSON(fiber.Map{
		"message": msg,
		"id":      row[entity.PrimaryKey.Column],
	})
}

// Update handles PUT /api/:entity/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	fields, validationErrs := ValidateWrite(entity, body, false)
	if len(validationErrs) > 0 {
		return respondError(c, ValidationError(validationErrs))
	}
	if ruleErrs := EvaluateRules(entity, fields, false); len(ruleErrs) > 0 {
		return respondError(c, ValidationError(ruleErrs))
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	note, err := h.runHook(ctx, entity, fields)
	if err != nil {
		return h.writeError(c, entity, err)
	}

	sql, params := BuildUpdateSQL(entity, id, fields)
	affected, err := store.Exec(ctx, h.store.Pool, sql, params...)
	if err != nil {
		return h.writeError(c, entity, fmt.Errorf("update %s/%d: %w", entity.Table, id, err))
	}
	// Zero rows changed means the id does not exist; that is a 404, not
	// a silent success.
	if affected == 0 {
		return respondError(c, NotFoundError(entity.Name, c.Params("id")))
	}

	msg := fmt.Sprintf("%s updated", entity.Name)
	if note != "" {
		msg += " " + note
	}
	return c.JSON(fiber.Map{"message": msg})
}

// Delete handles DELETE /api/:entity/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.store.WithTimeout(c.Context())
	defer cancel()

	sql, params := BuildDeleteSQL(entity, id)
	affected, err := store.Exec(ctx, h.store.Pool, sql, params...)
	if err != nil {
		// Rows elsewhere still reference this one: deletes are
		// restricted, not cascaded.
		if errors.Is(err, store.ErrForeignKeyViolation) {
			return respondError(c, ConflictError(
				fmt.Sprintf("%s is still referenced by other records", entity.Name)))
		}
		return fmt.Errorf("delete %s/%d: %w", entity.Table, id, err)
	}
	if affected == 0 {
		return respondError(c, NotFoundError(entity.Name, c.Params("id")))
	}

	return c.JSON(fiber.Map{"message": fmt.Sprintf("%s deleted", entity.Name)})
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("entity")
	entity := h.registry.GetEntity(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

func (h *Handler) runHook(ctx context.Context, entity *metadata.Entity, fields map[string]any) (string, error) {
	hook, ok := h.hooks[normalizeName(entity.Name)]
	if !ok {
		return "", nil
	}
	return hook(ctx, h.store.Pool, entity, fields)
}

// parseID validates the :id path segment as an integer. A malformed id is
// a client error, never interpolated into SQL.
func parseID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Returned as the handler error so callers can never proceed
		// with a zero id after a malformed parameter.
		return 0, ValidationError([]ErrorDetail{{
			Field:   "id",
			Rule:    "type",
			Message: fmt.Sprintf("Invalid id: %s", raw),
		}})
	}
	return id, nil
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// writeError maps constraint violations from Create/Update to client
// errors; anything else bubbles to the central error handler.
func (h *Handler) writeError(c *fiber.Ctx, entity *metadata.Entity, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}

	if errors.Is(err, store.ErrUniqueViolation) {
		return respondError(c, ConflictError(
			fmt.Sprintf("A %s with this value already exists", entity.Name)))
	}
	if errors.Is(err, store.ErrForeignKeyViolation) {
		return respondError(c, ValidationError([]ErrorDetail{{
			Rule:    "reference",
			Message: "Referenced record does not exist",
		}}))
	}

	return err
}
