package ingestparse

import "testing"

func TestParseLine_QuantityUnitName(t *testing.T) {
	segs := ParseLine("2 cups flour, sifted")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	s := segs[0]
	if s.Quantity != "2" || s.Unit != "cup" || s.Name != "flour, sifted" {
		t.Fatalf("unexpected segment: %+v", s)
	}
}

func TestParseLine_AbbreviatedUnit(t *testing.T) {
	s := ParseLine("1 tbsp olive oil")[0]
	if s.Quantity != "1" || s.Unit != "tablespoon" || s.Name != "olive oil" {
		t.Fatalf("unexpected segment: %+v", s)
	}
}

func TestParseLine_Fraction(t *testing.T) {
	s := ParseLine("1/2 tsp salt")[0]
	if s.Quantity != "1/2" || s.Unit != "teaspoon" || s.Name != "salt" {
		t.Fatalf("unexpected segment: %+v", s)
	}
}

func TestParseLine_MixedNumber(t *testing.T) {
	s := ParseLine("1 1/2 cups sugar")[0]
	if s.Quantity != "1 1/2" || s.Unit != "cup" || s.Name != "sugar" {
		t.Fatalf("unexpected segment: %+v", s)
	}
}

func TestParseLine_VulgarFraction(t *testing.T) {
	s := ParseLine("½ cup butter")[0]
	if s.Quantity != "1/2" || s.Unit != "cup" || s.Name != "butter" {
		t.Fatalf("unexpected segment: %+v", s)
	}
}

func TestParseLine_NoQuantityOrUnit(t *testing.T) {
	s := ParseLine("salt to taste")[0]
	if s.Quantity != "" || s.Unit != "" || s.Name != "salt to taste" {
		t.Fatalf("unexpected segment: %+v", s)
	}
}

func TestParseLine_Empty(t *testing.T) {
	if segs := ParseLine("   "); segs != nil {
		t.Fatalf("expected nil for blank input, got %+v", segs)
	}
}
