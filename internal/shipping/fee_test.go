package shipping

import "testing"

func TestFeeNoDiscount(t *testing.T) {
	pkg := Package{ID: "jne-reg", Cost: 20_000}
	if got := Fee(pkg, &Courier{ID: "jne"}, 300_000); got != 20_000 {
		t.Fatalf("expected unchanged cost, got %d", got)
	}
}

func TestFeeNilCourierPassthrough(t *testing.T) {
	pkg := Package{ID: "ghost", Cost: 25_000}
	if got := Fee(pkg, nil, 1_000_000); got != 25_000 {
		t.Fatalf("unowned package must pass through, got %d", got)
	}
}

func TestFeeInactiveDiscount(t *testing.T) {
	pkg := Package{Cost: 20_000}
	c := &Courier{Discount: &CourierDiscount{Kind: DiscountFree, Active: false}}
	if got := Fee(pkg, c, 999_999); got != 20_000 {
		t.Fatalf("inactive discount must not apply, got %d", got)
	}
}

func TestFeeMinSpendGate(t *testing.T) {
	pkg := Package{Cost: 20_000}
	c := &Courier{Discount: &CourierDiscount{Kind: DiscountPercentage, Value: 50, MinSpend: minSpend(200_000), Active: true}}
	if got := Fee(pkg, c, 199_999); got != 20_000 {
		t.Fatalf("below min spend must not discount, got %d", got)
	}
	if got := Fee(pkg, c, 300_000); got != 10_000 {
		t.Fatalf("expected 50%% off shipping (10000), got %d", got)
	}
}

func TestFeeKinds(t *testing.T) {
	pkg := Package{Cost: 20_000}
	cases := []struct {
		name     string
		discount CourierDiscount
		want     int64
	}{
		{"free", CourierDiscount{Kind: DiscountFree, Active: true}, 0},
		{"fixed", CourierDiscount{Kind: DiscountFixed, Value: 5_000, Active: true}, 15_000},
		{"fixed over cost", CourierDiscount{Kind: DiscountFixed, Value: 50_000, Active: true}, 0},
		{"percentage", CourierDiscount{Kind: DiscountPercentage, Value: 25, Active: true}, 15_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Courier{Discount: &tc.discount}
			if got := Fee(pkg, c, 1_000_000); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
