package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.MembershipRepository = (*DB)(nil)

// AddMembership relies on the (kind, user_id, recipe_id) primary key: a
// duplicate, including one from a concurrent request, is a Conflict.
func (db *DB) AddMembership(ctx context.Context, kind model.ListKind, userID, recipeID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO recipe_memberships (kind, user_id, recipe_id, created_at) VALUES (?, ?, ?, ?)`,
		string(kind), userID, recipeID, time.Now().UTC(),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Conflict(fmt.Sprintf("recipe already added to %s", kind.Label()))
		case isForeignKeyViolation(err):
			return apperror.NotFound("recipe", recipeID)
		}
		return fmt.Errorf("sqlite: adding recipe %d to %s of user %d: %w", recipeID, kind, userID, err)
	}
	return nil
}

func (db *DB) RemoveMembership(ctx context.Context, kind model.ListKind, userID, recipeID int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM recipe_memberships WHERE kind = ? AND user_id = ? AND recipe_id = ?`,
		string(kind), userID, recipeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing recipe %d from %s of user %d: %w", recipeID, kind, userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotInList(kind.Label())
	}
	return nil
}

func (db *DB) HasMembership(ctx context.Context, kind model.ListKind, userID, recipeID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM recipe_memberships WHERE kind = ? AND user_id = ? AND recipe_id = ?)`,
		string(kind), userID, recipeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking %s membership: %w", kind, err)
	}
	return exists, nil
}

func (db *DB) MemberRecipes(ctx context.Context, kind model.ListKind, userID int64, recipeIDs []int64) (map[int64]bool, error) {
	member := make(map[int64]bool, len(recipeIDs))
	if userID == 0 || len(recipeIDs) == 0 {
		return member, nil
	}

	marks, args := placeholders(recipeIDs)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT recipe_id FROM recipe_memberships
		 WHERE kind = ? AND user_id = ? AND recipe_id IN (`+marks+`)`,
		append([]any{string(kind), userID}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s memberships: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning membership: %w", err)
		}
		member[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memberships: %w", err)
	}
	return member, nil
}
