package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler lets num out of every den calls through. A zero ratio disables sampling.
type ratioSampler struct {
	mu       sync.Mutex
	num, den int
	n        int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	s.mu.Lock()
	s.num, s.den, s.n = min(num, den), den, 0
	s.mu.Unlock()
}

// Allow reports whether the next call falls inside the sampled part of the window.
func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den == 0 {
		return true
	}
	s.n = s.n%s.den + 1
	return s.n <= s.num
}

// parseRatioSpec accepts "num/den" or "N" (meaning 1/N). Anything else disables sampling.
func parseRatioSpec(spec string) (num, den int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		d, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	every, err := strconv.Atoi(spec)
	if err != nil || every <= 0 {
		return 0, 0
	}
	return 1, every
}
