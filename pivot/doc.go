// Package pivot provides pivots, validated pivot sets and the two parallel
// precomputations of the index: the corpus maximum distance and the per-object
// pivot distance table.
//
// All distances stored in a Table are normalized by the maximum distance, so
// values of objects drawn from the corpus lie in [0, 1].
package pivot
