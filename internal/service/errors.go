package service

import (
	"errors"
	"fmt"

	"halaqa-points-api/internal/store"
)

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrAlreadyOwned          = errors.New("item already owned")
	ErrNotFound              = errors.New("ledger record not found")
	ErrTransientStoreFailure = errors.New("transient store failure")
	ErrInvalidAmount         = errors.New("amount must be a positive integer")
	ErrInvalidSlot           = errors.New("unknown equipment slot")
	ErrInvalidItem           = errors.New("item id is required")
	ErrUnauthenticated       = errors.New("no current user")
)

// storeError translates store errors into the service taxonomy. Decision
// errors returned from a transaction function pass through unchanged.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrOverflow):
		return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	case errors.Is(err, store.ErrTransient):
		return fmt.Errorf("%w: %w", ErrTransientStoreFailure, err)
	}
	return err
}
