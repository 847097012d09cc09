package reservation

import "time"

func SetClock(s *Service, now func() time.Time) { s.now = now }

func SetCodeSource(s *Service, f func(digits int) string) { s.codes = f }

var RandomCode = randomCode

var NormalizePhone = normalizePhone
