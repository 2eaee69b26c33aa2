package order_matching

import "sort"

// sideIndex maps a price (by its raw mantissa, since every Value on one
// side shares the book's tick exponent) to the arena index of its
// PricePoint, kept sorted ascending by mantissa. Bids read the best
// price from the tail (highest), asks from the head (lowest); spec §4.5
// requires the best price on each side to be O(1) and updated on every
// mutation, which a sorted slice plus binary search gives without a
// heap's awkward O(log n) arbitrary removal.
type sideIndex struct {
	side    Side
	prices  []int64 // sorted ascending raw mantissa
	byPrice map[int64]uint32
}

func newSideIndex(side Side) *sideIndex {
	return &sideIndex{side: side, byPrice: make(map[int64]uint32)}
}

// find returns the position in s.prices holding mantissa, and whether it
// was found.
func (s *sideIndex) find(mantissa int64) (int, bool) {
	i := sort.Search(len(s.prices), func(i int) bool { return s.prices[i] >= mantissa })
	if i < len(s.prices) && s.prices[i] == mantissa {
		return i, true
	}
	return i, false
}

// Get returns the PricePoint arena index at mantissa, if present.
func (s *sideIndex) Get(mantissa int64) (uint32, bool) {
	idx, ok := s.byPrice[mantissa]
	return idx, ok
}

// Insert adds a new (mantissa -> arena index) binding. The caller must
// not call Insert for a mantissa already present.
func (s *sideIndex) Insert(mantissa int64, arenaIdx uint32) {
	pos, _ := s.find(mantissa)
	s.prices = append(s.prices, 0)
	copy(s.prices[pos+1:], s.prices[pos:])
	s.prices[pos] = mantissa
	s.byPrice[mantissa] = arenaIdx
}

// Remove deletes the binding for mantissa, if present.
func (s *sideIndex) Remove(mantissa int64) {
	pos, ok := s.find(mantissa)
	if !ok {
		return
	}
	s.prices = append(s.prices[:pos], s.prices[pos+1:]...)
	delete(s.byPrice, mantissa)
}

// Best returns the most aggressive price's mantissa: the maximum for a
// bid-side index, the minimum for an ask-side index. ok is false when
// the side is empty.
func (s *sideIndex) Best() (mantissa int64, ok bool) {
	if len(s.prices) == 0 {
		return 0, false
	}
	if s.side == Buy {
		return s.prices[len(s.prices)-1], true
	}
	return s.prices[0], true
}

// Crosses reports whether mantissa, proposed by the opposite side's
// incoming order, would match against this side's best price: for the
// ask side (incoming buy), best <= mantissa; for the bid side (incoming
// sell), best >= mantissa.
func (s *sideIndex) Crosses(mantissa int64) bool {
	best, ok := s.Best()
	if !ok {
		return false
	}
	if s.side == Sell {
		return best <= mantissa
	}
	return best >= mantissa
}

// Levels returns up to n price mantissas in priority order (best
// first).
func (s *sideIndex) Levels(n int) []int64 {
	if n > len(s.prices) {
		n = len(s.prices)
	}
	out := make([]int64, n)
	if s.side == Buy {
		for i := 0; i < n; i++ {
			out[i] = s.prices[len(s.prices)-1-i]
		}
	} else {
		copy(out, s.prices[:n])
	}
	return out
}

// Len reports the number of distinct price levels.
func (s *sideIndex) Len() int { return len(s.prices) }
