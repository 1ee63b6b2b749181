package sqlite

import (
	"fmt"

	"github.com/sakif/foodgram/internal/model"
)

// schema is applied on every start. CREATE ... IF NOT EXISTS keeps it
// idempotent; later changes go through addColumnIfNotExists.
//
// Every ownership edge cascades: deleting a user removes their recipes,
// subscriptions and list memberships; deleting a recipe removes its line
// items and memberships.
var schema = []struct {
	name string
	sql  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			username      TEXT NOT NULL UNIQUE,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			avatar        TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`},
	{"subscriptions", `
		CREATE TABLE IF NOT EXISTS subscriptions (
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			author_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, author_id),
			CHECK (user_id <> author_id)
		)`},
	{"ingredients", `
		CREATE TABLE IF NOT EXISTS ingredients (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			name             TEXT NOT NULL,
			measurement_unit TEXT NOT NULL,
			UNIQUE (name, measurement_unit)
		)`},
	{"recipes", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS recipes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			author_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name         TEXT NOT NULL,
			text         TEXT NOT NULL,
			cooking_time INTEGER NOT NULL CHECK (cooking_time BETWEEN %d AND %d),
			image        TEXT NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, model.MinCookingTime, model.MaxCookingTime)},
	// No UNIQUE (recipe_id, ingredient_id): duplicates are rejected by
	// validation before the insert.
	{"recipe_ingredients", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS recipe_ingredients (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			recipe_id     INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
			amount        INTEGER NOT NULL CHECK (amount BETWEEN %d AND %d)
		)`, model.MinAmount, model.MaxAmount)},
	{"recipe_memberships", `
		CREATE TABLE IF NOT EXISTS recipe_memberships (
			kind       TEXT NOT NULL CHECK (kind IN ('favorite', 'shopping_cart')),
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recipe_id  INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (kind, user_id, recipe_id)
		)`},
	{"indexes", `
		CREATE INDEX IF NOT EXISTS idx_ingredients_name ON ingredients(name);
		CREATE INDEX IF NOT EXISTS idx_recipes_author_id ON recipes(author_id);
		CREATE INDEX IF NOT EXISTS idx_recipes_created_at ON recipes(created_at);
		CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_recipe_id ON recipe_ingredients(recipe_id);
		CREATE INDEX IF NOT EXISTS idx_recipe_memberships_recipe_id ON recipe_memberships(recipe_id);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_author_id ON subscriptions(author_id)`},
}

func (db *DB) migrate() error {
	for _, step := range schema {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s: %w", step.name, err)
		}
	}

	// GitHub login came after the users table. SQLite cannot ADD a UNIQUE
	// column, so uniqueness goes on a separate index.
	if err := db.addColumnIfNotExists("users", "github_id", "INTEGER"); err != nil {
		return fmt.Errorf("adding github_id to users: %w", err)
	}
	if _, err := db.conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id ON users(github_id)`,
	); err != nil {
		return fmt.Errorf("creating users github_id index: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
