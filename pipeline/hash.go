package pipeline

// goldenRatio64 is 2^64 divided by the golden ratio.
const goldenRatio64 = 0x9e3779b97f4a7c15

// hashState is an order-sensitive hash accumulator. Each add mixes the
// running value into the new one, so the result depends on both the values
// and their positions.
type hashState struct {
	value uint64
}

func (s *hashState) add(v uint64) {
	s.value ^= v + goldenRatio64 + (s.value << 6) + (s.value >> 2)
}

func (s *hashState) sum() uint64 {
	return s.value
}
