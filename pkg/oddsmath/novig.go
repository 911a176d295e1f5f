package oddsmath

import "fmt"

// RemoveVigTwoWay strips the bookmaker margin from a two-way market.
// Each side's fair probability is its implied probability divided by the
// overround; vig is the excess above 1.0.
//
// Example:
// Side A: -110 (52.38%) | Side B: -110 (52.38%)
// Fair: 50% / 50%, vig 4.76%
func RemoveVigTwoWay(prob1, prob2 float64) (fair1, fair2, vig float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	total := prob1 + prob2
	if total <= 1.0 {
		return 0, 0, 0, fmt.Errorf("no vig detected: probabilities sum to <= 1.0")
	}

	return prob1 / total, prob2 / total, total - 1.0, nil
}

// FairPriceTwoWay removes the vig from a two-way market quoted in American
// odds and returns the fair American price of the first side.
func FairPriceTwoWay(odds1, odds2 int) (int, error) {
	p1, err := AmericanToImplied(odds1)
	if err != nil {
		return 0, fmt.Errorf("side 1: %w", err)
	}

	p2, err := AmericanToImplied(odds2)
	if err != nil {
		return 0, fmt.Errorf("side 2: %w", err)
	}

	fair1, _, _, err := RemoveVigTwoWay(p1, p2)
	if err != nil {
		return 0, err
	}

	return ImpliedToAmerican(fair1)
}
