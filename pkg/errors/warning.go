package errors

import "fmt"

// WarningKind classifies recoverable issues. Warnings are logged and
// recorded, execution continues.
type WarningKind string

const (
	// WarningConsistency is raised when a split table's own row count
	// disagrees with the count derived from identifiers
	WarningConsistency WarningKind = "consistency"
	// WarningTypeCoercion is raised when a boolean column is summed
	WarningTypeCoercion WarningKind = "type_coercion"
)

// Warning is a recoverable, local issue observed while building an index or
// resolving a value.
type Warning struct {
	Kind     WarningKind
	Entity   string
	Variable string
	Message  string
}

// String implements fmt.Stringer
func (w Warning) String() string {
	switch {
	case w.Variable != "" && w.Entity != "":
		return fmt.Sprintf("%s: %s@%s: %s", w.Kind, w.Variable, w.Entity, w.Message)
	case w.Variable != "":
		return fmt.Sprintf("%s: %s: %s", w.Kind, w.Variable, w.Message)
	case w.Entity != "":
		return fmt.Sprintf("%s: %s: %s", w.Kind, w.Entity, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
