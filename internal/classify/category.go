package classify

import (
	"fmt"
	"strings"
)

// Category is the behavioural class of an instruction. The declaration order
// is the classification precedence: the first category whose predicate holds
// wins.
type Category int

const (
	Privileged Category = iota
	Crypto
	FloatingPoint
	Branch
	Memory
	Other
	Logic

	numCategories
)

var categoryNames = [numCategories]string{
	Privileged:    "PRIV",
	Crypto:        "CRYPTO",
	FloatingPoint: "FP",
	Branch:        "BR",
	Memory:        "MEM",
	Other:         "OTHERS",
	Logic:         "LOGIC",
}

// Categories returns every category in precedence order.
func Categories() []Category {
	cats := make([]Category, numCategories)
	for i := range cats {
		cats[i] = Category(i)
	}
	return cats
}

// NumCategories is the number of categories.
const NumCategories = int(numCategories)

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// ParseCategory is the inverse of String. Matching ignores case and
// surrounding spaces.
func ParseCategory(s string) (Category, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	v, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
