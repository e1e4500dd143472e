package ruby

import "golang.org/x/text/unicode/norm"

// Similarity is the overlap coefficient of the two strings' character
// multisets: shared characters over the size of the smaller bag.
func Similarity(a, b string) float64 {
	a = norm.NFC.String(a)
	b = norm.NFC.String(b)

	countsA := make(map[rune]int)
	lenA := 0
	for _, r := range a {
		countsA[r]++
		lenA++
	}

	shared, lenB := 0, 0
	for _, r := range b {
		lenB++
		if countsA[r] > 0 {
			countsA[r]--
			shared++
		}
	}

	if lenA == 0 && lenB == 0 {
		return 1
	}
	smaller := min(lenA, lenB)
	if smaller == 0 {
		return 0
	}
	return float64(shared) / float64(smaller)
}
