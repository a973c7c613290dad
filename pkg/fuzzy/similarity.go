package fuzzy

import "math"

// StringSimilarity returns a sequence-matcher style ratio in [0,1] between
// two strings: twice the length of their longest common subsequence divided
// by the sum of their lengths. Two empty strings are trivially identical and
// score 1.0; without that, a track missing the same optional fields on both
// sides could never reach the match threshold against itself.
func StringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	return 2.0 * float64(longestCommonSubsequence(ra, rb)) / float64(len(ra)+len(rb))
}

// IntCloseness returns how close two positive integers are, rounded to one
// decimal. Zero means "absent": if either side is zero the score is 0.
func IntCloseness(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	larger := a
	if b > a {
		larger = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}

	return RoundTo(1.0-float64(diff)/float64(larger), 1)
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}

func longestCommonSubsequence(a, b []rune) int {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] > dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	return dp[m][n]
}
