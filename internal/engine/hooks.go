package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"ministry-backend/internal/metadata"
	"ministry-backend/internal/store"
)

// PreWriteHook runs inside Create and Update after field validation and
// before the primary statement. A hook may reject the write by returning
// an error (typically an *AppError), mutate the field map, and contribute
// a note that the handler appends to the confirmation message.
type PreWriteHook func(ctx context.Context, q store.Querier, entity *metadata.Entity, fields map[string]any) (note string, err error)

// DefaultHooks wires the shipped per-entity hooks: the Asset -> Location
// referential check and password hashing for User writes.
func DefaultHooks() map[string]PreWriteHook {
	return map[string]PreWriteHook{
		"asset": AssetLocationHook,
		"user":  UserPasswordHook,
	}
}

// AssetLocationHook verifies that an asset's location_id references an
// existing location. The location's name feeds the confirmation message.
func AssetLocationHook(ctx context.Context, q store.Querier, entity *metadata.Entity, fields map[string]any) (string, error) {
	locID, ok := fields["location_id"]
	if !ok {
		return "", nil
	}

	row, err := store.QueryRow(ctx, q, "SELECT name FROM locations WHERE location_id = $1", locID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ValidationError([]ErrorDetail{{
				Field:   "location_id",
				Rule:    "reference",
				Message: "invalid location reference",
			}})
		}
		return "", fmt.Errorf("look up location: %w", err)
	}

	name, _ := row["name"].(string)
	return fmt.Sprintf("at %s", name), nil
}

// UserPasswordHook replaces a plaintext password field with its bcrypt
// hash so credentials are never stored in the clear.
func UserPasswordHook(ctx context.Context, q store.Querier, entity *metadata.Entity, fields map[string]any) (string, error) {
	plain, ok := fields["password"].(string)
	if !ok || plain == "" {
		return "", nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	fields["password"] = string(hash)
	return "", nil
}
