package usecase

import (
	"context"
	"testing"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

func TestRecommendProductsMatchesTradeNameAndActiveIngredient(t *testing.T) {
	answer := "Apply Heritage at 0.2 oz, then rotate to chlorothalonil as a contact."
	got := recommendProducts(answer)

	want := []string{"Heritage (azoxystrobin)", "Daconil (chlorothalonil)"}
	if len(got) != len(want) {
		t.Fatalf("recommendProducts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recommendProducts() = %v, want %v", got, want)
		}
	}
}

func TestRecommendProductsDeduplicatesTradeNameAndIngredient(t *testing.T) {
	answer := "Heritage contains azoxystrobin, a QoI fungicide."
	got := recommendProducts(answer)
	if len(got) != 1 || got[0] != "Heritage (azoxystrobin)" {
		t.Fatalf("trade name and ingredient must collapse to one entry, got %v", got)
	}
}

func TestRecommendProductsIgnoresEverydayWords(t *testing.T) {
	answer := "Secure the tarp, drive the cart around the monument, and merit a dimension of certainty."
	if got := recommendProducts(answer); got != nil {
		t.Fatalf("everyday words must not recommend products, got %v", got)
	}
}

func TestRecommendProductsMatchesMultiWordNames(t *testing.T) {
	got := recommendProducts("Tank mix Banner Maxx with Primo Maxx before the heat arrives.")
	want := map[string]bool{
		"Banner Maxx (propiconazole)":   true,
		"Primo Maxx (trinexapac-ethyl)": true,
	}
	if len(got) != 2 || !want[got[0]] || !want[got[1]] {
		t.Fatalf("multi-word names not matched, got %v", got)
	}
}

func TestRecommendProductsCapsTheList(t *testing.T) {
	answer := "Rotate heritage, daconil, medallion, velista, posterity, and insignia through the season."
	got := recommendProducts(answer)
	if len(got) != maxRecommendedProducts {
		t.Fatalf("expected cap at %d products, got %d: %v", maxRecommendedProducts, len(got), got)
	}
}

func TestAskSurfacesRecommendedProducts(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.seedStrongHits()

	answer, err := fx.uc.Ask(context.Background(), domain.Query{Text: "how do I control dollar spot on bentgrass"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	want := []string{"Heritage (azoxystrobin)", "Daconil (chlorothalonil)"}
	if len(answer.RecommendedProducts) != len(want) {
		t.Fatalf("RecommendedProducts = %v, want %v", answer.RecommendedProducts, want)
	}
	for i := range want {
		if answer.RecommendedProducts[i] != want[i] {
			t.Fatalf("RecommendedProducts = %v, want %v", answer.RecommendedProducts, want)
		}
	}
}
