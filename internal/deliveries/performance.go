package deliveries

// onTimeRate is the percentage of a provider's deliveries that completed
// successfully.
func onTimeRate(successful, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(successful) / float64(total) * 100
}

// averageMinutes is the mean elapsed time between the first and last timeline
// entries, over delivered deliveries only.
func averageMinutes(bounds []TimelineBounds) float64 {
	if len(bounds) == 0 {
		return 0
	}
	var total float64
	for _, b := range bounds {
		total += b.Last.Sub(b.First).Minutes()
	}
	return total / float64(len(bounds))
}
