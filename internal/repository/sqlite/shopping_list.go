package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.ShoppingListRepository = (*DB)(nil)

// ShoppingList groups by the ingredient's natural key (name, unit) rather
// than its id, so two catalog rows with the same name and unit merge into
// one line.
func (db *DB) ShoppingList(ctx context.Context, userID int64) ([]model.ShoppingListItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT i.name, i.measurement_unit, SUM(ri.amount)
		 FROM recipe_memberships m
		 JOIN recipe_ingredients ri ON ri.recipe_id = m.recipe_id
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE m.kind = ? AND m.user_id = ?
		 GROUP BY i.name, i.measurement_unit
		 ORDER BY i.name, i.measurement_unit`,
		string(model.ListShoppingCart), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating shopping list of user %d: %w", userID, err)
	}
	defer rows.Close()

	items := []model.ShoppingListItem{}
	for rows.Next() {
		var it model.ShoppingListItem
		if err := rows.Scan(&it.Name, &it.MeasurementUnit, &it.Amount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning shopping list row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating shopping list: %w", err)
	}
	return items, nil
}
