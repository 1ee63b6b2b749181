package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/foodgram/internal/model"
)

func TestShoppingList_SumsByNameAndUnit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "chef")
	buyer := createTestUser(t, db, "buyer")
	in := createTestIngredients(t, db,
		[2]string{"flour", "g"},
		[2]string{"sugar", "g"},
		[2]string{"milk", "ml"},
		[2]string{"flour", "kg"},
	)
	flourG, sugar, milk, flourKg := in[0], in[1], in[2], in[3]

	r1 := createTestRecipe(t, db, author.ID, "Cake",
		model.LineItem{IngredientID: flourG.ID, Amount: 200},
		model.LineItem{IngredientID: sugar.ID, Amount: 100},
	)
	r2 := createTestRecipe(t, db, author.ID, "Bread",
		model.LineItem{IngredientID: flourG.ID, Amount: 150},
		model.LineItem{IngredientID: milk.ID, Amount: 300},
		model.LineItem{IngredientID: flourKg.ID, Amount: 1},
	)
	// in favorites only: must not count
	r3 := createTestRecipe(t, db, author.ID, "Pie",
		model.LineItem{IngredientID: sugar.ID, Amount: 999},
	)

	db.AddMembership(ctx, model.ListShoppingCart, buyer.ID, r1.ID)
	db.AddMembership(ctx, model.ListShoppingCart, buyer.ID, r2.ID)
	db.AddMembership(ctx, model.ListFavorite, buyer.ID, r3.ID)

	got, err := db.ShoppingList(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("ShoppingList() error = %v", err)
	}

	want := []model.ShoppingListItem{
		{Name: "flour", MeasurementUnit: "g", Amount: 350},
		{Name: "flour", MeasurementUnit: "kg", Amount: 1},
		{Name: "milk", MeasurementUnit: "ml", Amount: 300},
		{Name: "sugar", MeasurementUnit: "g", Amount: 100},
	}
	if len(got) != len(want) {
		t.Fatalf("ShoppingList() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestShoppingList_Empty(t *testing.T) {
	db := newTestDB(t)
	buyer := createTestUser(t, db, "buyer")

	got, err := db.ShoppingList(context.Background(), buyer.ID)
	if err != nil {
		t.Fatalf("ShoppingList() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ShoppingList() = %+v, want empty", got)
	}
}
