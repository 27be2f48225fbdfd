package mindex

import (
	"errors"
	"fmt"

	"github.com/hupe1980/mindex/btree"
	"github.com/hupe1980/mindex/cluster"
	"github.com/hupe1980/mindex/pivot"
	"github.com/hupe1980/mindex/voronoi"
)

var (
	// ErrInvalidArgument is returned for invalid construction or call arguments.
	// Callers must not retry without correcting the input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when an operation does not fit the index lifecycle.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotBuilt is returned by queries before Build.
	ErrNotBuilt = fmt.Errorf("%w: index is not built", ErrInvalidState)

	// ErrAlreadyBuilt is returned by Add, AddAll and Build after a successful Build.
	ErrAlreadyBuilt = fmt.Errorf("%w: index is already built", ErrInvalidState)

	// ErrBuildFailed is returned by every operation after a failed Build.
	// A partially built index is never queried.
	ErrBuildFailed = fmt.Errorf("%w: index build failed", ErrInvalidState)

	// ErrClosed is returned by every operation after Close.
	ErrClosed = fmt.Errorf("%w: index is closed", ErrInvalidState)
)

// ErrInvalidLevel indicates a max cluster level outside [1, pivots].
//
// It matches ErrInvalidArgument with errors.Is.
type ErrInvalidLevel struct {
	Level  int
	Pivots int
}

func (e *ErrInvalidLevel) Error() string {
	return fmt.Sprintf("invalid max cluster level: %d not in [1, %d]", e.Level, e.Pivots)
}

// Is reports whether target is ErrInvalidArgument.
func (e *ErrInvalidLevel) Is(target error) bool { return target == ErrInvalidArgument }

// ErrKeySpace indicates that pivots^level cluster paths leave too little
// floating point resolution for the fractional part of storage keys.
//
// It matches ErrInvalidArgument with errors.Is.
type ErrKeySpace struct {
	Pivots int
	Level  int
}

func (e *ErrKeySpace) Error() string {
	return fmt.Sprintf("cluster key space too large: %d pivots ^ level %d exceeds 2^32", e.Pivots, e.Level)
}

// Is reports whether target is ErrInvalidArgument.
func (e *ErrKeySpace) Is(target error) bool { return target == ErrInvalidArgument }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidArgument) {
		return err
	}

	// Argument normalization across sub-packages.
	switch {
	case errors.Is(err, pivot.ErrInvalidArgument),
		errors.Is(err, cluster.ErrInvalidArgument),
		errors.Is(err, btree.ErrInvalidArgument),
		errors.Is(err, voronoi.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}
