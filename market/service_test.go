package market

import (
	"context"
	"testing"
)

func TestPlaceValidation(t *testing.T) {
	// Validation happens before any transaction begins, so a nil pool is safe.
	svc := NewService(nil, nil, nil)

	cases := []struct {
		name   string
		params PlaceParams
	}{
		{"missing seller", PlaceParams{ItemID: 1, Quantity: 5, UnitPrice: 2}},
		{"zero quantity", PlaceParams{SellerID: "s", ItemID: 1, UnitPrice: 2}},
		{"zero price", PlaceParams{SellerID: "s", ItemID: 1, Quantity: 5}},
	}
	for _, tc := range cases {
		if _, err := svc.Place(context.Background(), tc.params); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestFillValidation(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if _, err := svc.Fill(context.Background(), FillParams{OrderID: "x"}); err == nil {
		t.Error("expected validation error for missing buyer")
	}
}
