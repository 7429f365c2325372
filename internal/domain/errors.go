package domain

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateSlot  = errors.New("an assignment already exists for this equipment, date and half-day slot")
	ErrMalformedInput = errors.New("malformed input")
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("unauthorized")
)

type EntityKind string

const (
	EntityEquipment  EntityKind = "equipment"
	EntityOperator   EntityKind = "operator"
	EntityPerson     EntityKind = "person"
	EntitySite       EntityKind = "site"
	EntityExpense    EntityKind = "expense"
	EntityAssignment EntityKind = "assignment"
	EntityReference  EntityKind = "reference"
	EntityUser       EntityKind = "user"
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Kind EntityKind
	ID   uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(kind EntityKind, id uint) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// MalformedInputError reports a missing or unparseable field. It matches
// ErrMalformedInput.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

func Malformed(field, reason string) error {
	return &MalformedInputError{Field: field, Reason: reason}
}

// IsNotFoundOf reports whether err is a NotFoundError for kind.
func IsNotFoundOf(err error, kind EntityKind) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Kind == kind
}
