package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

// CreateRecipe inserts the header and the line items in one transaction. On
// any failure nothing is visible.
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	now := time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO recipes (author_id, name, text, cooking_time, image, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recipe.AuthorID, recipe.Name, recipe.Text, recipe.CookingTime, recipe.Image, now, now,
		)
		if err != nil {
			return recipeWriteError("creating recipe", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading recipe id: %w", err)
		}

		if err := insertLineItems(ctx, tx, id, recipe.Ingredients); err != nil {
			return err
		}

		recipe.ID = id
		return nil
	})
	if err != nil {
		return err
	}

	recipe.CreatedAt = now
	recipe.UpdatedAt = now
	return nil
}

// UpdateRecipe rewrites the header and replaces all line items in one
// transaction.
func (db *DB) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	now := time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE recipes
			 SET name = ?, text = ?, cooking_time = ?, image = ?, updated_at = ?
			 WHERE id = ?`,
			recipe.Name, recipe.Text, recipe.CookingTime, recipe.Image, now, recipe.ID,
		)
		if err != nil {
			return recipeWriteError(fmt.Sprintf("updating recipe %d", recipe.ID), err)
		}

		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("recipe", recipe.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipe.ID,
		); err != nil {
			return fmt.Errorf("sqlite: clearing ingredients of recipe %d: %w", recipe.ID, err)
		}

		return insertLineItems(ctx, tx, recipe.ID, recipe.Ingredients)
	})
	if err != nil {
		return err
	}

	recipe.UpdatedAt = now
	return nil
}

func insertLineItems(ctx context.Context, tx *sql.Tx, recipeID int64, items []model.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	// one multi-row INSERT per recipe
	var sb strings.Builder
	sb.WriteString(`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount) VALUES `)
	args := make([]any, 0, len(items)*3)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, recipeID, item.IngredientID, item.Amount)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("ingredients", "recipe references an unknown ingredient")
		}
		return recipeWriteError(fmt.Sprintf("inserting ingredients of recipe %d", recipeID), err)
	}
	return nil
}

// recipeWriteError maps constraint failures that validation should have
// caught to validation errors instead of 500s.
func recipeWriteError(op string, err error) error {
	if isCheckViolation(err) {
		return apperror.ValidationFailed("", "value out of range")
	}
	if isForeignKeyViolation(err) {
		return apperror.ValidationFailed("author", "author does not exist")
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

func (db *DB) DeleteRecipe(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("recipe", id)
	}
	return nil
}

const recipeColumns = `r.id, r.author_id, r.name, r.text, r.cooking_time, r.image, r.created_at, r.updated_at`

func scanRecipe(row rowScanner) (*model.Recipe, error) {
	var r model.Recipe
	if err := row.Scan(
		&r.ID, &r.AuthorID, &r.Name, &r.Text, &r.CookingTime, &r.Image, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) GetRecipe(ctx context.Context, id int64) (*model.Recipe, error) {
	r, err := scanRecipe(db.conn.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes r WHERE r.id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("recipe", id)
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT ingredient_id, amount FROM recipe_ingredients WHERE recipe_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting line items of recipe %d: %w", id, err)
	}
	defer rows.Close()

	r.Ingredients = []model.LineItem{}
	for rows.Next() {
		var li model.LineItem
		if err := rows.Scan(&li.IngredientID, &li.Amount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning line item: %w", err)
		}
		r.Ingredients = append(r.Ingredients, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating line items: %w", err)
	}

	return r, nil
}

func (db *DB) RecipeIngredients(ctx context.Context, recipeID int64) ([]model.RecipeIngredient, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT i.id, i.name, i.measurement_unit, ri.amount
		 FROM recipe_ingredients ri
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id = ?
		 ORDER BY i.name, ri.id`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ingredients of recipe %d: %w", recipeID, err)
	}
	defer rows.Close()

	items := []model.RecipeIngredient{}
	for rows.Next() {
		var ri model.RecipeIngredient
		if err := rows.Scan(&ri.ID, &ri.Name, &ri.MeasurementUnit, &ri.Amount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recipe ingredient: %w", err)
		}
		items = append(items, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recipe ingredients: %w", err)
	}
	return items, nil
}

// ListRecipes applies the filter and returns one window of headers, newest
// first, plus the total match count.
func (db *DB) ListRecipes(ctx context.Context, filter repository.RecipeFilter, opts repository.ListOptions) ([]model.Recipe, int, error) {
	var (
		where []string
		args  []any
	)

	if filter.AuthorID != 0 {
		where = append(where, "r.author_id = ?")
		args = append(args, filter.AuthorID)
	}

	if filter.ViewerID != 0 {
		memberships := []struct {
			kind model.ListKind
			want *bool
		}{
			{model.ListFavorite, filter.IsFavorited},
			{model.ListShoppingCart, filter.IsInShoppingCart},
		}
		for _, m := range memberships {
			if m.want == nil {
				continue
			}
			cond := `EXISTS (SELECT 1 FROM recipe_memberships m
			         WHERE m.kind = ? AND m.user_id = ? AND m.recipe_id = r.id)`
			if !*m.want {
				cond = "NOT " + cond
			}
			where = append(where, cond)
			args = append(args, string(m.kind), filter.ViewerID)
		}
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes r`+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes: %w", err)
	}

	limit, offset := window(opts)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes r`+clause+`
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	defer rows.Close()

	recipes := []model.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning recipe row: %w", err)
		}
		recipes = append(recipes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}

	return recipes, total, nil
}
