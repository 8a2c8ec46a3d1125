package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankAscending(t *testing.T) {
	candidates := []Candidate{
		{Code: "B", Value: ptr32(5)},
		{Code: "A", Value: ptr32(2)},
		{Code: "C", Value: ptr32(9)},
	}
	ranked := Rank(candidates, true)
	codes := []string{ranked[0].Code, ranked[1].Code, ranked[2].Code}
	assert.Equal(t, []string{"A", "B", "C"}, codes)
}

func TestRankDescending(t *testing.T) {
	candidates := []Candidate{
		{Code: "B", Value: ptr32(5)},
		{Code: "A", Value: ptr32(2)},
		{Code: "C", Value: ptr32(9)},
	}
	ranked := Rank(candidates, false)
	codes := []string{ranked[0].Code, ranked[1].Code, ranked[2].Code}
	assert.Equal(t, []string{"C", "B", "A"}, codes)
}

func TestRankNullsAlwaysLast(t *testing.T) {
	candidates := []Candidate{
		{Code: "A", Value: ptr32(2)},
		{Code: "B", Value: nil},
		{Code: "C", Value: ptr32(9)},
	}
	for _, ascending := range []bool{true, false} {
		ranked := Rank(candidates, ascending)
		assert.Equal(t, "B", ranked[2].Code)
	}
}

func TestRankTiesBreakByCodeAscending(t *testing.T) {
	candidates := []Candidate{
		{Code: "C", Value: ptr32(5)},
		{Code: "A", Value: ptr32(5)},
		{Code: "B", Value: ptr32(5)},
	}
	ranked := Rank(candidates, true)
	codes := []string{ranked[0].Code, ranked[1].Code, ranked[2].Code}
	assert.Equal(t, []string{"A", "B", "C"}, codes)
}

func TestRankBothNullTiesBreakByCode(t *testing.T) {
	candidates := []Candidate{
		{Code: "B", Value: nil},
		{Code: "A", Value: nil},
	}
	ranked := Rank(candidates, true)
	assert.Equal(t, "A", ranked[0].Code)
	assert.Equal(t, "B", ranked[1].Code)
}
