// Package category holds the static notebook→category/tag mapping used by
// the DETERMINE_CATEGORY and DETERMINE_TAGS actions (spec §4.9). Real
// categorization is a fixed lookup table, not inferred from content:
// recipe NLP is explicitly out of scope.
package category

import "errors"

// ErrNoMapping is returned when a notebook name has no entry in the
// table — the business error surfaced by DETERMINE_CATEGORY in Scenario S5.
var ErrNoMapping = errors.New("category: no mapping found for notebook")

// Mapping is one notebook's resolved category and tag set.
type Mapping struct {
	Category string
	Tags     []string
}

// Table is the notebook name → Mapping lookup. Notebook names are matched
// case-sensitively, mirroring how they arrive verbatim from export metadata.
type Table map[string]Mapping

// Default returns the built-in notebook mapping, grounded on the kind of
// fixed category/tag vocab spec §6's GLOSSARY assumes a recipe box ships
// with.
func Default() Table {
	return Table{
		"Breakfast":    {Category: "breakfast", Tags: []string{"breakfast", "morning"}},
		"Main Dishes":  {Category: "main", Tags: []string{"dinner", "entree"}},
		"Desserts":     {Category: "dessert", Tags: []string{"dessert", "sweet"}},
		"Appetizers":   {Category: "appetizer", Tags: []string{"appetizer", "starter"}},
		"Soups":        {Category: "soup", Tags: []string{"soup"}},
		"Salads":       {Category: "salad", Tags: []string{"salad"}},
		"Sides":        {Category: "side", Tags: []string{"side-dish"}},
		"Beverages":    {Category: "beverage", Tags: []string{"drink"}},
		"Baking":       {Category: "baked-goods", Tags: []string{"baking"}},
		"Sauces":       {Category: "sauce", Tags: []string{"sauce", "condiment"}},
	}
}

// Resolve looks up notebook, returning ErrNoMapping when absent.
func (t Table) Resolve(notebook string) (Mapping, error) {
	m, ok := t[notebook]
	if !ok {
		return Mapping{}, ErrNoMapping
	}
	return m, nil
}
