package datasets

import "math/rand"

// MapIndex resolves flat index i over numImages images with numCaptions
// captions each. Both counts must be positive and i non-negative.
func MapIndex(i, numImages, numCaptions int) (imageOrdinal, captionOrdinal int) {
	return i % numImages, (i / numImages) % numCaptions
}

// sampleRand returns the random source of the fetch of index. With a zero
// seed it is seeded from the global source.
func sampleRand(seed int64, index int) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(int64(splitmix64(uint64(seed) ^ splitmix64(uint64(index))))))
}

func splitmix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
