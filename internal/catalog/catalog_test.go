package catalog

import (
	"testing"

	"github.com/zonabotin/storefront-system/internal/model"
)

func testProducts() []model.Product {
	return []model.Product{
		{ID: "1", Title: "Nike Mercurial", Brand: "Nike", Price: 30000},
		{ID: "2", Title: "Adidas Predator", Brand: "Adidas", Price: 10000},
		{ID: "3", Title: "Puma Future", Brand: "Puma", Price: 20000},
	}
}

func TestFilter_SearchCaseInsensitive(t *testing.T) {
	got := Filter(testProducts(), "nike", "")

	if len(got) != 1 {
		t.Fatalf("filtered = %d, want 1", len(got))
	}
	if got[0].Title != "Nike Mercurial" {
		t.Fatalf("title = %q, want %q", got[0].Title, "Nike Mercurial")
	}
}

func TestFilter_SearchMatchesBrandField(t *testing.T) {
	products := []model.Product{
		{ID: "1", Title: "Mercurial Vapor", Brand: "Nike"},
		{ID: "2", Title: "Predator", Brand: "Adidas"},
	}

	got := Filter(products, "NIKE", "")
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected only the Nike product, got %+v", got)
	}
}

func TestFilter_ExactBrand(t *testing.T) {
	got := Filter(testProducts(), "", "Adidas")

	if len(got) != 1 || got[0].Brand != "Adidas" {
		t.Fatalf("expected only Adidas products, got %+v", got)
	}
}

func TestFilter_EmptyQueryReturnsAll(t *testing.T) {
	got := Filter(testProducts(), "", "")

	if len(got) != 3 {
		t.Fatalf("filtered = %d, want 3", len(got))
	}
}

func TestSort_PriceAscAndDesc(t *testing.T) {
	asc := Sort(testProducts(), SortPriceAsc)
	wantAsc := []int64{10000, 20000, 30000}
	for i, p := range asc {
		if p.Price != wantAsc[i] {
			t.Fatalf("price-asc[%d] = %d, want %d", i, p.Price, wantAsc[i])
		}
	}

	desc := Sort(testProducts(), SortPriceDesc)
	wantDesc := []int64{30000, 20000, 10000}
	for i, p := range desc {
		if p.Price != wantDesc[i] {
			t.Fatalf("price-desc[%d] = %d, want %d", i, p.Price, wantDesc[i])
		}
	}
}

func TestSort_NewestKeepsCreationOrder(t *testing.T) {
	got := Sort(testProducts(), SortNewest)

	wantIDs := []string{"1", "2", "3"}
	for i, p := range got {
		if p.ID != wantIDs[i] {
			t.Fatalf("newest[%d] = %q, want %q", i, p.ID, wantIDs[i])
		}
	}
}

func TestSort_UnknownModeKeepsOrder(t *testing.T) {
	got := Sort(testProducts(), SortMode("bogus"))

	if got[0].ID != "1" || got[2].ID != "3" {
		t.Fatalf("unknown mode must keep input order, got %+v", got)
	}
}
