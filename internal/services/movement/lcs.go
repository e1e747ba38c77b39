package movement

// CollapseRuns merges consecutive duplicates: [a a b b a] -> [a b a].
func CollapseRuns(seq []string) []string {
	if len(seq) == 0 {
		return nil
	}
	out := make([]string, 0, len(seq))
	for i, s := range seq {
		if i == 0 || s != seq[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// LCS returns the longest common subsequence length of two id sequences.
func LCS(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
