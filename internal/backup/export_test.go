package backup

import "time"

// SetClock fixes the time used to name dumps.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
