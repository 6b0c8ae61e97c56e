package lending

import (
	"context"

	"github.com/google/uuid"
)

// CopyRegistry owns the availability state of each physical copy.
//
// TryReserve is the critical operation of the whole subsystem: it must be a
// single atomic check-and-set, so that of N concurrent calls on the same
// free copy exactly one succeeds and the others fail with
// ErrCopyUnavailable. Engines implement it either as a conditional database
// update or as a compare-and-swap under an in-process lock; a
// read-status-then-write-status sequence observable as two steps is not a
// valid implementation.
type CopyRegistry interface {
	// Add registers a new copy. The copy is stored as given; use BuildCopy
	// to create one in the free state.
	Add(ctx context.Context, copy Copy) error

	// TryReserve atomically transitions the copy from free to loaned.
	// It fails with ErrCopyUnavailable when the copy is already loaned and
	// with ErrCopyNotFound when the copy is unknown or retired.
	TryReserve(ctx context.Context, copyID uuid.UUID) error

	// Release transitions the copy from loaned back to free. Releasing an
	// already-free copy is a no-op success, which covers out-of-order
	// retries. It fails with ErrCopyNotFound when the copy is unknown.
	Release(ctx context.Context, copyID uuid.UUID) error

	// StatusOf is a read-only status query.
	// It fails with ErrCopyNotFound when the copy is unknown.
	StatusOf(ctx context.Context, copyID uuid.UUID) (CopyStatus, error)

	// Retire soft-removes the copy from circulation. The record survives,
	// since historical loans keep referencing it, but it can no longer be
	// reserved. It fails with ErrCopyNotFound when the copy is unknown and
	// with ErrCopyUnavailable while the copy is out on loan.
	Retire(ctx context.Context, copyID uuid.UUID) error
}
