package reporting

import "testing"

func TestPct(t *testing.T) {
	tests := []struct {
		n, total int
		want     float64
	}{
		{1, 3, 33.3},
		{2, 3, 66.7},
		{1, 1, 100},
		{0, 10, 0},
		{5, 0, 0},
		{1, 8, 12.5},
		{7, 9, 77.8},
	}

	for _, tt := range tests {
		if got := Pct(tt.n, tt.total); got != tt.want {
			t.Errorf("Pct(%d, %d) = %v, want %v", tt.n, tt.total, got, tt.want)
		}
	}
}

func TestAgeBandsCoverAllAges(t *testing.T) {
	// Every age from 0 to 120 must land in exactly one band.
	for age := 0; age <= 120; age++ {
		matches := 0
		for _, band := range ageBands {
			if age >= band.Min && (band.Max == -1 || age <= band.Max) {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("age %d matches %d bands", age, matches)
		}
	}
}
