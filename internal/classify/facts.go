package classify

import "fmt"

// Facts is the classification of a single decoded instruction.
type Facts struct {
	Category Category
	User     bool
	Length   int // encoded length in bytes
	Loads    int
	Stores   int

	Branch     bool
	Privileged bool
	Memory     bool // mnemonic is in the memory table
	FP         bool // floating point or SIMD
	Crypto     bool

	BothLoadStore     bool // Loads >= 1 && Stores >= 1
	MemoryAccess      bool // Loads+Stores >= 1
	MultiMemoryAccess bool // Loads+Stores >= 2

	// Mnemonic is the display mnemonic used as the per-mnemonic key.
	Mnemonic string
}

func (f *Facts) setAccesses(loads, stores int) {
	f.Loads = loads
	f.Stores = stores
	f.BothLoadStore = loads >= 1 && stores >= 1
	f.MemoryAccess = loads+stores >= 1
	f.MultiMemoryAccess = loads+stores >= 2
}

// Check verifies the relations between the access counts and the derived
// flags, and that the category is valid.
func (f Facts) Check() error {
	switch {
	case !f.Category.Valid():
		return fmt.Errorf("invalid category %d", int(f.Category))
	case f.Loads < 0 || f.Stores < 0:
		return fmt.Errorf("negative access count %d/%d", f.Loads, f.Stores)
	case f.BothLoadStore != (f.Loads >= 1 && f.Stores >= 1):
		return fmt.Errorf("both-load-store flag inconsistent with %d/%d", f.Loads, f.Stores)
	case f.MemoryAccess != (f.Loads+f.Stores >= 1):
		return fmt.Errorf("memory-access flag inconsistent with %d/%d", f.Loads, f.Stores)
	case f.MultiMemoryAccess != (f.Loads+f.Stores >= 2):
		return fmt.Errorf("multi-memory flag inconsistent with %d/%d", f.Loads, f.Stores)
	case f.Mnemonic == "":
		return fmt.Errorf("empty display mnemonic")
	}
	return nil
}

// Side returns 0 for user facts and 1 for kernel facts.
func (f Facts) Side() int {
	if f.User {
		return 0
	}
	return 1
}
