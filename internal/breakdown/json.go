package breakdown

import (
	"encoding/json"

	"tracestat/internal/classify"
)

type jsonCategory struct {
	Category  classify.Category     `json:"category"`
	Breakdown *Breakdown            `json:"breakdown"`
	Mnemonics map[string]*Breakdown `json:"mnemonics"`
}

type jsonTable struct {
	Total      Breakdown      `json:"total"`
	Categories []jsonCategory `json:"categories"`
}

// MarshalJSON encodes the populated categories in precedence order.
func (t *Table) MarshalJSON() ([]byte, error) {
	out := jsonTable{Total: t.Total(), Categories: []jsonCategory{}}
	for _, c := range t.Populated() {
		out.Categories = append(out.Categories, jsonCategory{
			Category:  c,
			Breakdown: t.categories[c],
			Mnemonics: t.mnemonics[c],
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	var in jsonTable
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = *NewTable()
	for _, jc := range in.Categories {
		if !jc.Category.Valid() || jc.Breakdown == nil {
			continue
		}
		t.categories[jc.Category] = jc.Breakdown
		for m, b := range jc.Mnemonics {
			if b != nil {
				t.mnemonics[jc.Category][m] = b
			}
		}
	}
	return nil
}
