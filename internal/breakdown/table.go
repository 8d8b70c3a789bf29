package breakdown

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"tracestat/internal/classify"
)

// Table owns the per-category and per-mnemonic breakdowns of a run. The
// zero value is not usable; call NewTable.
type Table struct {
	categories [classify.NumCategories]*Breakdown
	mnemonics  [classify.NumCategories]map[string]*Breakdown
}

// NewTable returns an empty table.
func NewTable() *Table {
	t := &Table{}
	for i := range t.mnemonics {
		t.mnemonics[i] = make(map[string]*Breakdown)
	}
	return t
}

// ErrInvalidCategory is returned when facts name no known category.
var ErrInvalidCategory = errors.New("invalid category")

// Fold adds f, seen repeat times, to its category bucket and to its
// mnemonic bucket within that category.
func (t *Table) Fold(f classify.Facts, repeat uint64) error {
	if !f.Category.Valid() {
		return fmt.Errorf("%w %d for %q", ErrInvalidCategory, int(f.Category), f.Mnemonic)
	}
	if repeat == 0 {
		return nil
	}
	c := f.Category
	if t.categories[c] == nil {
		t.categories[c] = &Breakdown{}
	}
	t.categories[c].Fold(f, repeat)

	b, ok := t.mnemonics[c][f.Mnemonic]
	if !ok {
		b = &Breakdown{}
		t.mnemonics[c][f.Mnemonic] = b
	}
	b.Fold(f, repeat)
	return nil
}

// FoldAll folds every element of facts with the same repeat count. Nothing
// is folded unless every element is valid.
func (t *Table) FoldAll(facts []classify.Facts, repeat uint64) error {
	for _, f := range facts {
		if !f.Category.Valid() {
			return fmt.Errorf("%w %d for %q", ErrInvalidCategory, int(f.Category), f.Mnemonic)
		}
	}
	for _, f := range facts {
		if err := t.Fold(f, repeat); err != nil {
			return err
		}
	}
	return nil
}

// Merge adds every counter of o into t. o is not modified.
func (t *Table) Merge(o *Table) {
	for c := range o.categories {
		if o.categories[c] == nil {
			continue
		}
		if t.categories[c] == nil {
			t.categories[c] = &Breakdown{}
		}
		t.categories[c].Merge(o.categories[c])
		for m, ob := range o.mnemonics[c] {
			b, ok := t.mnemonics[c][m]
			if !ok {
				b = &Breakdown{}
				t.mnemonics[c][m] = b
			}
			b.Merge(ob)
		}
	}
}

// Category returns the bucket of c, or nil if nothing was folded into it.
func (t *Table) Category(c classify.Category) *Breakdown {
	if !c.Valid() {
		return nil
	}
	return t.categories[c]
}

// Mnemonic returns the bucket of mnemonic m within c, or nil.
func (t *Table) Mnemonic(c classify.Category, m string) *Breakdown {
	if !c.Valid() {
		return nil
	}
	return t.mnemonics[c][m]
}

// Mnemonics returns the display mnemonics seen in c, sorted.
func (t *Table) Mnemonics(c classify.Category) []string {
	if !c.Valid() {
		return nil
	}
	return slices.Sorted(maps.Keys(t.mnemonics[c]))
}

// Populated returns the categories that have a bucket, in precedence order.
func (t *Table) Populated() []classify.Category {
	var out []classify.Category
	for _, c := range classify.Categories() {
		if t.categories[c] != nil {
			out = append(out, c)
		}
	}
	return out
}

// Total sums every category bucket.
func (t *Table) Total() Breakdown {
	var sum Breakdown
	for _, b := range t.categories {
		if b != nil {
			sum.Merge(b)
		}
	}
	return sum
}

// Equal reports whether t and o hold the same counters.
func (t *Table) Equal(o *Table) bool {
	for c := range t.categories {
		a, b := t.categories[c], o.categories[c]
		if (a == nil) != (b == nil) || (a != nil && *a != *b) {
			return false
		}
		if len(t.mnemonics[c]) != len(o.mnemonics[c]) {
			return false
		}
		for m, ab := range t.mnemonics[c] {
			bb, ok := o.mnemonics[c][m]
			if !ok || *ab != *bb {
				return false
			}
		}
	}
	return true
}

// Check runs Breakdown.Check on every bucket and verifies that the
// mnemonic buckets of each category add up to the category bucket.
func (t *Table) Check() error {
	var errs []error
	for _, c := range classify.Categories() {
		cb := t.categories[c]
		if cb == nil {
			if len(t.mnemonics[c]) > 0 {
				errs = append(errs, fmt.Errorf("%v: mnemonics without a category bucket", c))
			}
			continue
		}
		if err := cb.Check(); err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", c, err))
		}
		var sum Breakdown
		for m, b := range t.mnemonics[c] {
			if err := b.Check(); err != nil {
				errs = append(errs, fmt.Errorf("%v %q: %w", c, m, err))
			}
			sum.Merge(b)
		}
		if sum != *cb {
			errs = append(errs, fmt.Errorf("%v: mnemonic buckets do not add up to the category", c))
		}
	}
	return errors.Join(errs...)
}
