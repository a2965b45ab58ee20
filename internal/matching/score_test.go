package matching

import (
	"reflect"
	"testing"
)

func TestScoreFullMatch(t *testing.T) {
	buyer := Buyer{
		Industries: []string{"SaaS"},
		Regions:    []string{"Europe"},
		BudgetMin:  40000000,
		BudgetMax:  60000000,
	}
	listing := Listing{
		BusinessType: "SaaS",
		Geography:    "Western Europe",
		AskingPrice:  50000000,
	}

	result := Score(buyer, listing)
	if result.Score != 100 {
		t.Fatalf("Score = %d, want 100", result.Score)
	}
	want := []string{"Perfect budget match", "Industry match", "Geography match"}
	if !reflect.DeepEqual(result.Reasons, want) {
		t.Fatalf("Reasons = %v, want %v", result.Reasons, want)
	}
}

func TestScoreBudgetOutOfAllBands(t *testing.T) {
	buyer := Buyer{
		Industries: []string{"SaaS"},
		Regions:    []string{"Europe"},
		BudgetMin:  40000000,
		BudgetMax:  60000000,
	}
	// More than 2x budgetMax: the budget sub-score is zero but the other
	// dimensions still count.
	listing := Listing{
		BusinessType: "SaaS",
		Geography:    "Western Europe",
		AskingPrice:  200000000,
	}

	result := Score(buyer, listing)
	if result.Score != 60 {
		t.Fatalf("Score = %d, want 60", result.Score)
	}
}

func TestBudgetBoundariesInclusive(t *testing.T) {
	buyer := Buyer{BudgetMin: 100, BudgetMax: 200}

	for _, price := range []int64{100, 200} {
		result := Score(buyer, Listing{AskingPrice: price})
		if result.Score != 40 {
			t.Fatalf("price %d at boundary scored %d, want 40", price, result.Score)
		}
	}
}

func TestBudgetBandsFirstMatchWins(t *testing.T) {
	buyer := Buyer{BudgetMin: 100000, BudgetMax: 200000}

	cases := []struct {
		price int64
		want  int
	}{
		{price: 150000, want: 40}, // inside range
		{price: 230000, want: 30}, // within 1.2x max
		{price: 290000, want: 20}, // within 1.5x max
		{price: 400000, want: 10}, // within 2.0x max
		{price: 400001, want: 0},  // above every band
		{price: 90000, want: 30},  // within 0.8x min
		{price: 60000, want: 20},  // within 0.5x min
		{price: 10000, want: 10},  // low side of the widest band
	}

	for _, tc := range cases {
		result := Score(buyer, Listing{AskingPrice: tc.price})
		if result.Score != tc.want {
			t.Fatalf("price %d scored %d, want %d", tc.price, result.Score, tc.want)
		}
	}
}

func TestIndustryScoreIsBinary(t *testing.T) {
	buyer := Buyer{Industries: []string{"ecommerce"}}
	result := Score(buyer, Listing{BusinessType: "SaaS"})
	if result.Score != 0 {
		t.Fatalf("mismatched industry scored %d, want 0", result.Score)
	}

	buyer = Buyer{Industries: []string{"saas"}}
	result = Score(buyer, Listing{BusinessType: "B2B SaaS platform"})
	if result.Score != 40 {
		t.Fatalf("substring industry match scored %d, want 40", result.Score)
	}
}

func TestEmptyInputsNeverMatch(t *testing.T) {
	// An empty buyer industry must not act as a universal substring.
	buyer := Buyer{Industries: []string{""}, Regions: []string{"  "}}
	result := Score(buyer, Listing{BusinessType: "SaaS", Geography: "Europe"})
	if result.Score != 0 {
		t.Fatalf("empty terms scored %d, want 0", result.Score)
	}

	// Absent budget means no budget points.
	result = Score(Buyer{}, Listing{AskingPrice: 100})
	if result.Score != 0 {
		t.Fatalf("zero budget scored %d, want 0", result.Score)
	}
}
