package cli

import (
	"errors"
	"fmt"

	"boardsync/internal/client"
)

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func errUsage(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// describeErr adds a hint to server errors a user can act on.
func describeErr(err error) string {
	var apiErr client.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch {
	case client.IsNotFound(err):
		return err.Error() + " (run `boardsync snapshot` to list ids)"
	case client.IsConflict(err):
		return err.Error() + " (the board changed; retry against the latest snapshot)"
	}
	return err.Error()
}
