// Package ingestparse extracts quantity/unit/name segments from raw
// ingredient reference lines using regex patterns and a unit lookup
// table, no external dependencies — the same regex-and-lookup-table
// shape the teacher's pkg/vehiclenlp uses to extract make/model/year,
// retargeted from vehicle mentions to ingredient quantities.
package ingestparse

import (
	"regexp"
	"strings"
)

// Segment is one quantity/unit/name fragment of a parsed ingredient line.
type Segment struct {
	Index    int
	Quantity string
	Unit     string
	Name     string
	Raw      string
}

// unitAliases canonicalizes common abbreviations and plurals to a single
// unit name, the way makeAliases canonicalizes vehicle-make abbreviations.
var unitAliases = map[string]string{
	"tsp": "teaspoon", "tsps": "teaspoon", "teaspoon": "teaspoon", "teaspoons": "teaspoon",
	"tbsp": "tablespoon", "tbsps": "tablespoon", "tablespoon": "tablespoon", "tablespoons": "tablespoon",
	"c": "cup", "cup": "cup", "cups": "cup",
	"oz": "ounce", "ounce": "ounce", "ounces": "ounce",
	"lb": "pound", "lbs": "pound", "pound": "pound", "pounds": "pound",
	"g": "gram", "gram": "gram", "grams": "gram",
	"kg": "kilogram", "kilogram": "kilogram", "kilograms": "kilogram",
	"ml": "milliliter", "milliliter": "milliliter", "milliliters": "milliliter",
	"l": "liter", "liter": "liter", "liters": "liter",
	"pinch": "pinch", "pinches": "pinch",
	"dash": "dash", "dashes": "dash",
	"clove": "clove", "cloves": "clove",
	"can": "can", "cans": "can",
	"stick": "stick", "sticks": "stick",
}

// unitRe is a regex alternation of every known unit spelling, longest
// first so "tablespoons" matches before "tbsp" could shadow it.
var unitRe *regexp.Regexp

func init() {
	names := make([]string, 0, len(unitAliases))
	for k := range unitAliases {
		names = append(names, regexp.QuoteMeta(k))
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	unitRe = regexp.MustCompile(`(?i)^\s*(` + strings.Join(names, "|") + `)\.?\s+`)
}

// quantityRe matches a leading integer, decimal, simple fraction, or
// mixed number ("2", "1.5", "1/2", "1 1/2").
var quantityRe = regexp.MustCompile(`^\s*(\d+\s+\d+/\d+|\d+/\d+|\d+\.\d+|\d+)\s*`)

var vulgarFractions = map[rune]string{
	'¼': "1/4", '½': "1/2", '¾': "3/4", '⅓': "1/3", '⅔': "2/3",
	'⅛': "1/8", '⅜': "3/8", '⅝': "5/8", '⅞': "7/8",
}

// normalizeVulgarFractions replaces unicode vulgar fraction glyphs with
// their ASCII equivalent so quantityRe can match them.
func normalizeVulgarFractions(s string) string {
	var b strings.Builder
	for _, r := range s {
		if repl, ok := vulgarFractions[r]; ok {
			if b.Len() > 0 {
				last := b.String()
				if len(last) > 0 && last[len(last)-1] != ' ' {
					b.WriteByte(' ')
				}
			}
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseLine parses reference as a single quantity/unit/name segment;
// commas and semicolons are not treated as clause delimiters (e.g.
// "2 cups flour, sifted" → one segment with Name "flour, sifted"). A blank
// reference yields nil.
func ParseLine(reference string) []Segment {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}
	return []Segment{parseSegment(0, reference)}
}

func parseSegment(index int, raw string) Segment {
	rest := normalizeVulgarFractions(raw)

	var quantity string
	if m := quantityRe.FindStringSubmatch(rest); m != nil {
		quantity = strings.TrimSpace(m[1])
		rest = rest[len(m[0]):]
	}

	var unit string
	if m := unitRe.FindStringSubmatch(rest); m != nil {
		unit = unitAliases[strings.ToLower(strings.TrimRight(m[1], "."))]
		rest = rest[len(m[0]):]
	}

	return Segment{
		Index:    index,
		Quantity: quantity,
		Unit:     unit,
		Name:     strings.TrimSpace(rest),
		Raw:      raw,
	}
}
