package arbitrage

// eachTriple calls fn for every 3-combination of items in lexicographic
// index order (i<j<k). It stops early when fn returns false.
func eachTriple(items []string, fn func(a, b, c string) bool) {
	n := len(items)
	for i := 0; i < n-2; i++ {
		for j := i + 1; j < n-1; j++ {
			for k := j + 1; k < n; k++ {
				if !fn(items[i], items[j], items[k]) {
					return
				}
			}
		}
	}
}
