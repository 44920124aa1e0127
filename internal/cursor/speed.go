package cursor

// AdjustSpeed applies the multiplicative AIMD-like rule: exponential
// ramp-up on success, multiplicative backoff on failure, bounded by the
// adapter-declared [minSpeed, maxSpeed] range.
func AdjustSpeed(speed, minSpeed, maxSpeed int64, success bool) int64 {
	var next int64
	if success {
		next = speed * 5 / 4
		if next > maxSpeed {
			next = maxSpeed
		}
	} else {
		next = speed * 3 / 4
		if next < minSpeed {
			next = minSpeed
		}
	}
	if next < minSpeed {
		next = minSpeed
	}
	if next > maxSpeed {
		next = maxSpeed
	}
	return next
}
