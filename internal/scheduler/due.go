package scheduler

import (
	"log"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

// IsDue reports whether a job has never been refreshed or its interval has
// fully elapsed. The boundary counts as due.
func IsDue(j domain.Job, now time.Time) bool {
	if j.LastRefreshedAt == nil {
		return true
	}
	return now.Sub(*j.LastRefreshedAt) >= j.Interval()
}

// SelectDueJobs filters jobs without mutating them. Input order is kept.
func SelectDueJobs(jobs []domain.Job, now time.Time) []domain.Job {
	due := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		if !IsDue(j, now) {
			continue
		}
		if j.LastRefreshedAt == nil {
			log.Printf("[scheduler] due domain=%q never refreshed", j.Domain)
		} else {
			log.Printf("[scheduler] due domain=%q last_refreshed=%.2fh ago interval=%dh",
				j.Domain, now.Sub(*j.LastRefreshedAt).Hours(), j.IntervalHours)
		}
		due = append(due, j)
	}
	log.Printf("[scheduler] %d of %d job(s) due", len(due), len(jobs))
	return due
}
