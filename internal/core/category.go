package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Category is the closed set of expense categories. The numeric value is the
// code persisted in the expense table and must never be renumbered.
type Category int

const (
	Grocery       Category = 1
	Food          Category = 2
	Car           Category = 3
	Clothes       Category = 4
	Entertainment Category = 5
	School        Category = 6
	House         Category = 7
	Others        Category = 10
)

type categoryInfo struct {
	name  string
	color string
}

var categoryTable = map[Category]categoryInfo{
	Grocery:       {"Grocery", "#90CAF9"},
	Food:          {"Food", "#A5D6A7"},
	Car:           {"Car", "#FFAB91"},
	Clothes:       {"Clothes", "#FFCC80"},
	Entertainment: {"Entertainment", "#CE93D8"},
	School:        {"School", "#E2F1F8"},
	House:         {"House", "#EFDCD5"},
	Others:        {"Others", "#FFFFFF"},
}

// Spellings used by older clients.
var categoryAliases = map[string]Category{
	"entertaiment": Entertainment,
	"other":        Others,
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{Grocery, Food, Car, Clothes, Entertainment, School, House, Others}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

func (c Category) String() string {
	if info, ok := categoryTable[c]; ok {
		return info.name
	}
	return "Category(" + strconv.Itoa(int(c)) + ")"
}

// Color returns the display color as a #RRGGBB string.
func (c Category) Color() string {
	return categoryTable[c].color
}

// ParseCategory accepts a category name (case-insensitive) or its numeric code.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidCategory
	}
	if n, err := strconv.Atoi(s); err == nil {
		c := Category(n)
		if !c.Valid() {
			return 0, fmt.Errorf("%w: code %d", ErrInvalidCategory, n)
		}
		return c, nil
	}
	for c, info := range categoryTable {
		if strings.EqualFold(info.name, s) {
			return c, nil
		}
	}
	if c, ok := categoryAliases[strings.ToLower(s)]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return ErrInvalidCategory
		}
		s = strconv.Itoa(n)
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
