package coordinator

import (
	"errors"
	"fmt"
	"strings"

	"boardsync/internal/model"
	"boardsync/internal/order"
)

// PartialPlanError reports a sequential plan that stopped partway. Applied
// entities stay written and have been broadcast.
type PartialPlanError struct {
	Applied []model.Entity
	Failed  order.Assignment
	Err     error
}

func (e PartialPlanError) Error() string {
	return fmt.Sprintf("plan partially applied (%d written, failed at %s %s): %v", len(e.Applied), e.Failed.Kind, e.Failed.ID, e.Err)
}

func (e PartialPlanError) Unwrap() error { return e.Err }

func IsPartial(err error) bool {
	var p PartialPlanError
	return errors.As(err, &p)
}

// StalePlanError rejects a plan computed against an outdated snapshot.
type StalePlanError struct {
	Containers []order.ContainerID
}

func (e StalePlanError) Error() string {
	return fmt.Sprintf("stale plan: would break ordering of %s", strings.Join(containerStrings(e.Containers), ", "))
}

func IsStale(err error) bool {
	var s StalePlanError
	return errors.As(err, &s)
}
