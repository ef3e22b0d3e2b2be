// Package profile persists user records keyed by owner address.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
)

var (
	ErrNotFound    = errors.New("user record not found")
	ErrUnavailable = errors.New("profile store unavailable")
	ErrCorrupt     = errors.New("corrupt user record")
)

// UpdateFunc computes the next version of a record.
type UpdateFunc func(cur *models.UserRecord) (*models.UserRecord, error)

// Store is the remote profile store. Implementations never let
// HasReceivedAirdrop go from true back to false.
type Store interface {
	Get(ctx context.Context, address string) (*models.UserRecord, error)
	Put(ctx context.Context, u *models.UserRecord) error
	// Update applies fn to the current record (nil when none exists) and
	// stores what it returns, atomically with respect to other writers. fn
	// may run more than once and must not keep state between runs. A nil
	// record from fn leaves the store untouched. Errors from fn are returned
	// unchanged.
	Update(ctx context.Context, address string, fn UpdateFunc) (*models.UserRecord, error)
	// MarkAirdropReceived sets the airdrop flag only if it is currently false
	// and returns the previous value. ErrNotFound if no record exists.
	MarkAirdropReceived(ctx context.Context, address string) (bool, error)
}

// callerError marks an error returned by an UpdateFunc so stores pass it
// through untouched.
type callerError struct{ err error }

func (e callerError) Error() string { return e.err.Error() }
func (e callerError) Unwrap() error { return e.err }

func checkNext(address string, next *models.UserRecord) error {
	if next.Address != address {
		return fmt.Errorf("update user: address changed from %s to %q", address, next.Address)
	}
	return nil
}
