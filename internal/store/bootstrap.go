package store

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS churches (
    church_id    SERIAL PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    address      TEXT,
    city         TEXT,
    state        TEXT,
    phone        TEXT,
    email        TEXT,
    pastor_name  TEXT,
    founded_date DATE
);

CREATE TABLE IF NOT EXISTS people (
    person_id       SERIAL PRIMARY KEY,
    church_id       INTEGER REFERENCES churches(church_id),
    first_name      TEXT NOT NULL,
    last_name       TEXT NOT NULL,
    email           TEXT,
    phone           TEXT,
    address         TEXT,
    birth_date      DATE,
    membership_date DATE,
    role            TEXT
);

CREATE TABLE IF NOT EXISTS stats (
    stats_id     SERIAL PRIMARY KEY,
    church_id    INTEGER NOT NULL REFERENCES churches(church_id),
    stats_date   DATE NOT NULL,
    attendance   INTEGER,
    first_timers INTEGER,
    new_converts INTEGER,
    tithes       NUMERIC(12,2),
    offerings    NUMERIC(12,2)
);

CREATE TABLE IF NOT EXISTS users (
    user_id  SERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    email    TEXT,
    role     TEXT
);

CREATE TABLE IF NOT EXISTS calendar_events (
    id          SERIAL PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT,
    start_time  TIMESTAMPTZ NOT NULL,
    end_time    TIMESTAMPTZ,
    venue       TEXT,
    church_id   INTEGER REFERENCES churches(church_id)
);

CREATE TABLE IF NOT EXISTS locations (
    location_id    SERIAL PRIMARY KEY,
    name           TEXT NOT NULL,
    address        TEXT,
    contact_person TEXT,
    contact_phone  TEXT
);

CREATE TABLE IF NOT EXISTS assets (
    asset_id       SERIAL PRIMARY KEY,
    location_id    INTEGER NOT NULL REFERENCES locations(location_id),
    name           TEXT NOT NULL,
    description    TEXT,
    category       TEXT,
    serial_number  TEXT,
    purchase_date  DATE,
    purchase_price NUMERIC(12,2),
    condition      TEXT
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    id         SERIAL PRIMARY KEY,
    user_id    INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    token      UUID NOT NULL UNIQUE,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token ON refresh_tokens(token);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON refresh_tokens(expires_at);
`

// Bootstrap creates the schema if missing and seeds the first admin user.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context) error {
	var count int
	err := s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = s.Pool.Exec(ctx,
		`INSERT INTO users (username, password, role) VALUES ($1, $2, $3)`,
		"admin", string(hash), "admin",
	)
	if err != nil {
		return err
	}

	log.Println("WARNING: Default admin user created (admin / changeme) - change the password immediately.")
	return nil
}
