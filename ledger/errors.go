package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrManagerNotFound is returned when the issuing manager does not exist.
	ErrManagerNotFound = errors.New("manager not found")
	// ErrTargetUserNotFound is returned when the target user does not exist.
	ErrTargetUserNotFound = errors.New("target user not found")
	// ErrAlreadyAwarded is returned when a skill verification was already
	// converted into a point entry.
	ErrAlreadyAwarded = errors.New("skill verification already awarded")
	// ErrNotManager is returned when the issuing user's role does not permit
	// point allocation.
	ErrNotManager = errors.New("user is not permitted to allocate points")
)

// BudgetExceededError is returned by AddEntry when recording the entry would
// push the manager's daily usage over the configured limit. It is a
// recoverable, caller-visible condition; retrying with the same inputs fails
// identically until the day boundary passes.
type BudgetExceededError struct {
	ManagerID uint
	Used      int
	Requested int
	Limit     int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("daily point budget exceeded for manager %d: used %d + requested %d > limit %d",
		e.ManagerID, e.Used, e.Requested, e.Limit)
}

// InvalidInputError rejects malformed entries before any read or write.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid point entry: " + e.Reason
}
