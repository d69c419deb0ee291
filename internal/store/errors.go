package store

import (
	"errors"
	"fmt"

	"boardsync/internal/model"
)

type NotFoundError struct {
	Kind model.Kind
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// InvalidError reports a payload the store refuses to write.
type InvalidError struct {
	Field  string
	Reason string
}

func (e InvalidError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsInvalid(err error) bool {
	var inv InvalidError
	return errors.As(err, &inv)
}
