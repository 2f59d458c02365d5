package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrEmptyDomain     = errors.New("domain is required")
	ErrInvalidInterval = errors.New("interval must be a positive number of hours")
)

// Job is a recurring extraction against one external domain.
type Job struct {
	ID              string
	Domain          string
	InstructionRef  string // empty means non-generative extraction
	IntervalHours   int
	LastRefreshedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (j Job) Interval() time.Duration {
	return time.Duration(j.IntervalHours) * time.Hour
}

func (j Job) Generative() bool {
	return strings.TrimSpace(j.InstructionRef) != ""
}

// ValidateJob rejects configuration errors before a job can be stored.
func ValidateJob(domain string, intervalHours int) error {
	if strings.TrimSpace(domain) == "" {
		return ErrEmptyDomain
	}
	if intervalHours <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// NormalizeDomain reduces user input to a bare lower-case host, so
// "HTTPS://FoodBank.org/help" and "foodbank.org" name the same job.
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil && u.Host != "" {
			d = u.Host
		}
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimRight(d, ".")
}
