package indicator

import "fmt"

// PctChange returns the percentage move of price against prevClose.
func PctChange(price, prevClose float64) (float64, error) {
	if prevClose <= 0 {
		return 0, fmt.Errorf("%w: previous close is %v", ErrInsufficientData, prevClose)
	}
	return (price - prevClose) / prevClose * 100, nil
}

// VolumeRatio divides current by the mean of prior. ok is false when prior is
// empty or its mean is not positive.
func VolumeRatio(current float64, prior []float64) (ratio float64, ok bool) {
	if len(prior) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range prior {
		sum += v
	}
	mean := sum / float64(len(prior))
	if mean <= 0 {
		return 0, false
	}
	return current / mean, true
}
