// Package stats derives learning statistics from flashcards and a user's
// progress records. Nothing here performs I/O; callers fetch first.
package stats

import (
	"time"

	"github.com/flashlearn/backend/internal/models"
)

const (
	// StreakWindowDays is the inclusive whole-day window for Streak.
	StreakWindowDays = 7
	// ActivityDays is the length of the recent activity series.
	ActivityDays = 7

	dateLayout = "2006-01-02"
)

// Compute returns the derived statistics for one user as of asOf. Calendar
// days for the activity series are taken in loc; a nil loc means UTC.
//
// Streak counts records reviewed within the trailing window. It is not a
// count of consecutive days.
func Compute(flashcards []models.Flashcard, progress []models.ProgressRecord, asOf time.Time, loc *time.Location) models.DerivedStats {
	if loc == nil {
		loc = time.UTC
	}

	s := models.DerivedStats{
		TotalCards:     len(flashcards),
		AttemptedCards: len(progress),
	}

	for _, p := range progress {
		if p.IsMastered {
			s.MasteredCards++
		}
		if WholeDaysBetween(p.LastReviewed, asOf) <= StreakWindowDays {
			s.Streak++
		}
		s.StudyTime += p.Attempts
	}

	s.Accuracy = Percent(s.MasteredCards, s.AttemptedCards)
	s.RecentActivity = RecentActivity(progress, asOf, loc)
	return s
}

// Percent returns part/whole*100 rounded half up, or 0 when whole is 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (part*200 + whole) / (2 * whole)
}

// WholeDaysBetween returns the number of complete 24h periods from a to b,
// truncated toward zero.
func WholeDaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// RecentActivity counts records per calendar day for the ActivityDays days
// ending on asOf, oldest first.
func RecentActivity(progress []models.ProgressRecord, asOf time.Time, loc *time.Location) []models.DailyActivity {
	if loc == nil {
		loc = time.UTC
	}

	perDay := make(map[string]int, len(progress))
	for _, p := range progress {
		perDay[p.LastReviewed.In(loc).Format(dateLayout)]++
	}

	day := asOf.In(loc)
	series := make([]models.DailyActivity, 0, ActivityDays)
	for i := 0; i < ActivityDays; i++ {
		date := day.AddDate(0, 0, -i).Format(dateLayout)
		series = append(series, models.DailyActivity{Date: date, Count: perDay[date]})
	}

	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series
}
