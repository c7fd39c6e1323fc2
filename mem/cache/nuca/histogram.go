package nuca

import (
	"math"
)

// Bucket indexes the write-to-read ratio histogram.
type Bucket int

// Histogram buckets. Each bucket except BucketInf is labelled by the power of
// two it collects.
const (
	Bucket0 Bucket = iota
	Bucket1Over16
	Bucket1Over8
	Bucket1Over4
	Bucket1Over2
	Bucket1
	Bucket2
	Bucket4
	Bucket8
	Bucket16
	BucketInf
	NumBuckets
)

var bucketLabels = [NumBuckets]string{
	"0", "1/16", "1/8", "1/4", "1/2", "1", "2", "4", "8", "16", "inf",
}

var bucketValues = [BucketInf]float64{
	0, 0.0625, 0.125, 0.25, 0.5, 1, 2, 4, 8, 16,
}

func (b Bucket) String() string {
	if b < 0 || b >= NumBuckets {
		return "invalid"
	}

	return bucketLabels[b]
}

// Value returns the power of two a bucket collects. BucketInf returns +Inf.
func (b Bucket) Value() float64 {
	if b == BucketInf {
		return math.Inf(1)
	}

	return bucketValues[b]
}

// Exponent range scanned by GetNearestPower.
const (
	minExponent = -4
	maxExponent = 3
)

// GetNearestPower quantizes a ratio to a power of two. A ratio is moved to
// 2^i once it reaches 2^(i-2) + 2^(i-1), the midpoint between 2^(i-1) and 2^i.
// Ratios below the first midpoint give 0, ratios past the last one saturate
// at 2^maxExponent.
func GetNearestPower(n float64) float64 {
	bin := 0.0

	for i := minExponent; i <= maxExponent; i++ {
		if n < math.Ldexp(1, i-2)+math.Ldexp(1, i-1) {
			return bin
		}

		bin = math.Ldexp(1, i)
	}

	return bin
}

// BucketOf returns the bucket that collects a power of two produced by
// GetNearestPower. Values above the 16 bucket fall into BucketInf.
func BucketOf(power float64) Bucket {
	if power <= 0 {
		return Bucket0
	}

	if math.IsInf(power, 1) {
		return BucketInf
	}

	b := Bucket(math.Ilogb(power) - minExponent + int(Bucket1Over16))
	switch {
	case b < Bucket1Over16:
		return Bucket1Over16
	case b > Bucket16:
		return BucketInf
	default:
		return b
	}
}

// WriteReadRatio returns 2w/(r+3). The offset in the denominator keeps the
// ratio finite for lines that were never read and damps it for lines that
// were read only a few times.
func WriteReadRatio(writes, reads uint64) float64 {
	return float64(2*writes) / float64(reads+3)
}
