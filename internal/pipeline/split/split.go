// Package split partitions labelled rows into stratified train and test sets.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Stratified returns disjoint train and test index sets. Each label keeps
// its share in both partitions: round(n*testFraction) rows of every class
// go to test, with at least one row per side when the class has two or
// more. Indices are returned in ascending order.
func Stratified(labels []int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}

	byLabel := make(map[int][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}

	classes := make([]int, 0, len(byLabel))
	for l := range byLabel {
		classes = append(classes, l)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, l := range classes {
		idx := byLabel[l]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testFraction))
		if len(idx) >= 2 {
			nTest = max(1, min(nTest, len(idx)-1))
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("cannot split %d rows into non-empty train and test sets", len(labels))
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// Pick returns items at the given indices.
func Pick[T any](items []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = items[idx]
	}
	return out
}
