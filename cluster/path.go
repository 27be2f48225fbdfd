package cluster

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrInvalidArgument is wrapped by every argument validation error of this package.
	ErrInvalidArgument = errors.New("cluster: invalid argument")

	// ErrDigitOutOfRange is returned when a path digit is not in [0, radix).
	ErrDigitOutOfRange = fmt.Errorf("%w: digit out of range", ErrInvalidArgument)

	// ErrPathOverflow is returned when a path value no longer fits into 64 bits.
	ErrPathOverflow = fmt.Errorf("%w: path value overflows", ErrInvalidArgument)
)

// PathIndex encodes the sequence of pivot slots chosen from the root to a
// cluster as a positional number in base radix.
//
// Distinct paths of equal length over the same radix have distinct values. A
// PathIndex is immutable; AddLevel returns a new one.
type PathIndex struct {
	value uint64
	radix uint32
	path  []uint32
}

// NewPathIndex returns the empty path (the root) for the given radix.
func NewPathIndex(radix int) (PathIndex, error) {
	if radix < 1 || uint64(radix) > math.MaxUint32 {
		return PathIndex{}, fmt.Errorf("%w: radix %d", ErrInvalidArgument, radix)
	}
	return PathIndex{radix: uint32(radix)}, nil
}

// AddLevel returns the path extended by one digit: value*radix + next.
func (p PathIndex) AddLevel(next int) (PathIndex, error) {
	if next < 0 || next >= int(p.radix) {
		return PathIndex{}, fmt.Errorf("%w: %d not in [0, %d)", ErrDigitOutOfRange, next, p.radix)
	}

	r := uint64(p.radix)
	if p.value > (math.MaxUint64-uint64(next))/r {
		return PathIndex{}, fmt.Errorf("%w: level %d radix %d", ErrPathOverflow, p.Level()+1, p.radix)
	}

	path := make([]uint32, len(p.path)+1)
	copy(path, p.path)
	path[len(p.path)] = uint32(next)

	return PathIndex{
		value: p.value*r + uint64(next),
		radix: p.radix,
		path:  path,
	}, nil
}

// Value returns the encoded path.
func (p PathIndex) Value() uint64 { return p.value }

// Level returns the number of digits.
func (p PathIndex) Level() int { return len(p.path) }

// Radix returns the number base.
func (p PathIndex) Radix() int { return int(p.radix) }

// Path returns a copy of the digits from the root downwards.
func (p PathIndex) Path() []uint32 { return slices.Clone(p.path) }

// Digit returns the digit at position i.
func (p PathIndex) Digit(i int) int { return int(p.path[i]) }

// Last returns the last digit, or -1 for the root.
func (p PathIndex) Last() int {
	if len(p.path) == 0 {
		return -1
	}
	return int(p.path[len(p.path)-1])
}

func (p PathIndex) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, d := range p.path {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(d), 10))
	}
	sb.WriteString("]=")
	sb.WriteString(strconv.FormatUint(p.value, 10))
	return sb.String()
}

// DecodePath recovers the digits of a path of the given level from its value by
// repeated division by radix.
func DecodePath(value uint64, radix, level int) ([]uint32, error) {
	if radix < 1 || level < 0 {
		return nil, fmt.Errorf("%w: radix %d level %d", ErrInvalidArgument, radix, level)
	}

	path := make([]uint32, level)
	r := uint64(radix)
	for i := level - 1; i >= 0; i-- {
		path[i] = uint32(value % r)
		value /= r
	}
	if value != 0 {
		return nil, fmt.Errorf("%w: value does not fit %d digits", ErrInvalidArgument, level)
	}
	return path, nil
}
