package types

import "time"

type IntentOperation string

const (
	IntentCreate  IntentOperation = "create"
	IntentUpdate  IntentOperation = "update"
	IntentCancel  IntentOperation = "cancel"
	IntentReplace IntentOperation = "replace"
	IntentUnknown IntentOperation = "unknown"
)

func (op IntentOperation) Valid() bool {
	switch op {
	case IntentCreate, IntentUpdate, IntentCancel, IntentReplace, IntentUnknown:
		return true
	}
	return false
}

// Mutates reports whether the operation changes persisted state.
func (op IntentOperation) Mutates() bool {
	switch op {
	case IntentCreate, IntentUpdate, IntentCancel, IntentReplace:
		return true
	}
	return false
}

// Intent is the structured reading of one resident message. It is a
// per-request value object and is never persisted.
//
// Date is always a resolved calendar date (DateOnly form) when the
// operation is anything other than unknown; an unresolvable date forces
// Operation to unknown rather than guessing.
type Intent struct {
	Operation          IntentOperation
	Date               time.Time
	Meals              MealChanges
	NeedsClarification bool
	Clarification      string
}
