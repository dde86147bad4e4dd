package authcore

import "time"

// SetClock overrides the service's time source in tests.
func SetClock(s *Service, now func() time.Time) {
	s.clock = now
}
