// Package conv provides safe integer type conversion utilities.
//
// Object IDs are stored as uint32 in the B+Tree and the candidate bitmaps,
// while slices index them with int. These functions check the bounds when
// crossing between the two.
//
// For conversions that are provably safe by domain constraints (e.g., loop
// indices, bounded counters), use direct type casts instead to avoid overhead.
package conv
