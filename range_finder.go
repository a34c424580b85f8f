package ultrahdr

import "math"

const (
	rangeFinderBucketSize   = 0.01
	rangeFinderOutlierRatio = 0.001
	rangeFinderMaxBuckets   = 10000
)

// FindMinMaxWithoutOutliers computes an approximate [min, max] of data,
// discarding up to rangeFinderOutlierRatio/2 of samples on each tail via a
// uniform histogram over the raw range, per spec §4.3. The trimmed range
// always excludes whole empty buckets but never cuts through a populated
// one: boundary pixels may remain inside the returned range.
//
// Grounded on the bucket-scan shape of mlnoga/nightlight's
// internal/stats.Histogram, adapted to the two-sided outlier trim the
// UltraHDR gain map box requires instead of a Gaussian peak fit.
func FindMinMaxWithoutOutliers(data []float32) (rangeMin, rangeMax float32, err error) {
	if len(data) == 0 {
		return 0, 0, invalidArgf("empty sample array")
	}
	min, max := data[0], data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	allowed := int(float64(len(data)) * rangeFinderOutlierRatio / 2)
	if max-min <= 2*rangeFinderBucketSize || allowed == 0 {
		return min, max, nil
	}

	span := float64(max - min)
	k := int(math.Ceil(span / rangeFinderBucketSize))
	if k > rangeFinderMaxBuckets {
		k = rangeFinderMaxBuckets
	}
	if k < 1 {
		k = 1
	}

	buckets := make([]int, k)
	for _, v := range data {
		idx := int(math.Round(float64(v-min) / span * float64(k)))
		if idx < 0 {
			idx = 0
		}
		if idx > k-1 {
			idx = k - 1
		}
		buckets[idx]++
	}

	rangeMin = min
	leftOutliers := 0
	for i := 0; i < k; i++ {
		leftOutliers += buckets[i]
		if leftOutliers > allowed {
			break
		}
		if buckets[i] == 0 {
			rangeMin = float32(float64(min) + float64(i+1)*span/float64(k))
		}
	}

	rangeMax = max
	rightOutliers := 0
	for i := k - 1; i >= 0; i-- {
		rightOutliers += buckets[i]
		if rightOutliers > allowed {
			break
		}
		if buckets[i] == 0 {
			rangeMax = float32(float64(min) + float64(i)*span/float64(k))
		}
	}

	if rangeMax < rangeMin {
		rangeMin, rangeMax = min, max
	}
	return rangeMin, rangeMax, nil
}
