package normalize

// rollingStats maintains sliding-window mean and variance with Welford's
// update in both directions: O(1) add, O(1) removal of the expired sample,
// O(window) space for the FIFO itself.
type rollingStats struct {
	buf  []float64 // ring buffer of the last len(buf) accepted samples
	head int
	size int
	mean float64
	m2   float64
}

func newRollingStats(capacity int) *rollingStats {
	return &rollingStats{buf: make([]float64, capacity)}
}

func (s *rollingStats) add(x float64) {
	if s.size == len(s.buf) {
		s.remove(s.buf[s.head])
	}
	tail := (s.head + s.size) % len(s.buf)
	s.buf[tail] = x
	s.size++

	delta := x - s.mean
	s.mean += delta / float64(s.size)
	s.m2 += delta * (x - s.mean)
	if s.m2 < 0 {
		s.m2 = 0
	}
}

// remove reverses the Welford update for the oldest sample.
func (s *rollingStats) remove(x float64) {
	n := s.size
	s.head = (s.head + 1) % len(s.buf)
	s.size--
	if s.size == 0 {
		s.mean = 0
		s.m2 = 0
		return
	}
	oldMean := s.mean
	s.mean = (float64(n)*s.mean - x) / float64(n-1)
	s.m2 -= (x - oldMean) * (x - s.mean)
	if s.m2 < 0 {
		s.m2 = 0
	}
}

// variance is the population variance over the current window.
func (s *rollingStats) variance() float64 {
	if s.size == 0 {
		return 0
	}
	return s.m2 / float64(s.size)
}

func (s *rollingStats) reset() {
	s.head = 0
	s.size = 0
	s.mean = 0
	s.m2 = 0
}
