package mindex_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/mindex"
	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/pivot"
)

// Example demonstrates indexing points and running a range query.
func Example() {
	ctx := context.Background()

	pivots := []pivot.Pivot[distance.Point]{
		pivot.New(0, distance.Point{X: 0, Y: 0}),
		pivot.New(1, distance.Point{X: 1, Y: 1}),
	}

	ix, err := mindex.New(2, 2, pivots, distance.PointDistance)
	if err != nil {
		log.Fatal(err)
	}
	defer ix.Close()

	_ = ix.Add(distance.Point{X: 1, Y: 1})
	_ = ix.Add(distance.Point{X: 0, Y: 0})

	if err := ix.Build(ctx); err != nil {
		log.Fatal(err)
	}

	results, err := ix.RangeQuery(ctx, distance.Point{X: 1, Y: 1}, 0.1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(results)
	// Output: [(1, 1)]
}

// Example_dynamicBuilder demonstrates dynamic clustering of scalars.
func Example_dynamicBuilder() {
	ctx := context.Background()

	pivots := []pivot.Pivot[float64]{
		pivot.New(0, 0.0),
		pivot.New(1, 50.0),
		pivot.New(2, 100.0),
	}

	ix, err := mindex.Dynamic(pivots, distance.Scalar). // Scalar absolute difference
								MaxLevel(3).         // Cluster hierarchy depth
								LeafObjectsLimit(2). // Split leaves beyond two objects
								Degree(4).           // B+Tree degree
								Build()
	if err != nil {
		log.Fatal(err)
	}
	defer ix.Close()

	_ = ix.AddAll([]float64{3, 12, 48, 51, 55, 97, 99})
	if err := ix.Build(ctx); err != nil {
		log.Fatal(err)
	}

	ids, err := ix.RangeQueryIDs(ctx, 50.0, 5)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(ids)
	// Output: [2 3 4]
}

// Example_stats demonstrates inspecting pruning statistics.
func Example_stats() {
	ctx := context.Background()

	pivots := []pivot.Pivot[float64]{pivot.New(0, 0.0), pivot.New(1, 100.0)}

	ix, err := mindex.Static(pivots, distance.Scalar).MaxLevel(1).Build()
	if err != nil {
		log.Fatal(err)
	}
	defer ix.Close()

	_ = ix.AddAll([]float64{1, 2, 3, 98, 99})
	if err := ix.Build(ctx); err != nil {
		log.Fatal(err)
	}

	results, stats, err := ix.RangeQueryWithStats(ctx, 2.0, 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(results, stats.DistanceComputations <= 3)
	// Output: [1 2 3] true
}
