package catalog

import (
	"fmt"

	"github.com/oukeidos/arcat/internal/apperrors"
)

// Rejection is the structured result of a refused commit or delete.
//
// Values holds one entry per column: the value to show the user after
// recovery, nil to clear the cell, or Keep to leave it as it is. Stores
// leave Row at -1; the editing core fills it in.
type Rejection struct {
	Row    int
	Column int
	Values Values
	Reason string
	Kind   apperrors.Kind
	Cause  error
}

func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	if r.Reason != "" {
		return r.Reason
	}
	if r.Cause != nil {
		return r.Cause.Error()
	}
	return "change rejected"
}

// Unwrap exposes the rejection as an *apperrors.Error so callers can use
// apperrors.KindOf on store results.
func (r *Rejection) Unwrap() error {
	if r == nil {
		return nil
	}
	return &apperrors.Error{Kind: r.Kind, SafeMessage: r.Reason, Cause: r.Cause}
}

// DeleteRefused reports whether the rejection is for a delete, i.e. it
// carries no replacement values.
func (r *Rejection) DeleteRefused() bool {
	if r == nil || len(r.Values) == 0 {
		return false
	}
	for _, v := range r.Values {
		if !IsKeep(v) {
			return false
		}
	}
	return true
}

// Reject builds a store-side rejection for a refused commit.
func Reject(kind apperrors.Kind, column int, submitted Values, reason string, cause error) *Rejection {
	return &Rejection{
		Row:    -1,
		Column: column,
		Values: submitted.Clone(),
		Reason: reason,
		Kind:   kind,
		Cause:  cause,
	}
}

// RejectDelete builds a store-side rejection for a refused delete.
func RejectDelete(kind apperrors.Kind, width int, reason string, cause error) *Rejection {
	return &Rejection{
		Row:    -1,
		Column: -1,
		Values: KeepAll(width),
		Reason: reason,
		Kind:   kind,
		Cause:  cause,
	}
}

// Conflict is the rejection for an original key that no longer matches a record.
func Conflict(t Table, key Key, submitted Values) *Rejection {
	reason := fmt.Sprintf("%s %s was changed or removed by someone else", t.Name, key)
	if submitted == nil {
		return RejectDelete(apperrors.KindConcurrencyConflict, len(t.Columns), reason, nil)
	}
	return Reject(apperrors.KindConcurrencyConflict, t.FirstEditable(), submitted, reason, nil)
}

// Duplicate is the rejection for a unique-column clash. The offending
// value is cleared in the rejected values so the user re-enters it.
func Duplicate(t Table, column int, submitted Values, cause error) *Rejection {
	name := "value"
	if column >= 0 && column < len(t.Columns) {
		name = t.Columns[column].Name
	}
	reason := fmt.Sprintf("%s %q is already catalogued", name, FormatValue(submitted[column]))
	rej := Reject(apperrors.KindConstraintViolation, column, submitted, reason, cause)
	rej.Values[column] = nil
	return rej
}
