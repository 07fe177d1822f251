package s3

import "time"

type Option func(s *Storage)

func ConnAttempts(attempts int) Option {
	return func(s *Storage) {
		s.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(s *Storage) {
		s.connTimeout = timeout
	}
}

func Region(region string) Option {
	return func(s *Storage) {
		if region != "" {
			s.region = region
		}
	}
}

func UsePathStyle(use bool) Option {
	return func(s *Storage) {
		s.usePathStyle = use
	}
}
