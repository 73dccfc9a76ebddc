package domain

import "time"

// RateLimitStatus is what a caller may expose about a subject's current window.
type RateLimitStatus struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"-"`
}

func (s RateLimitStatus) ResetInSeconds() int64 {
	return int64(s.ResetIn.Round(time.Second) / time.Second)
}

const (
	RateLimitScopeLogin   = "login"
	RateLimitScopeComment = "comment"
)
