package classify

import (
	"errors"
	"fmt"

	"tracestat/internal/arch"
)

// ErrUnclassifiable is matched by every *Error.
var ErrUnclassifiable = errors.New("unclassifiable operation")

// Error reports an instruction that none of the rule tables account for.
// It is fatal for a run.
type Error struct {
	Arch   arch.Arch
	VA     uint64
	Text   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (%#x: %s)", e.Arch, ErrUnclassifiable, e.Reason, e.VA, e.Text)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnclassifiable
}
