// Package progression computes XP, level, streak and stage. Every function is
// pure: inputs are never mutated and persistence is the caller's job.
package progression

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
)

const (
	xpPerLevelUnit = 100

	DailyLoginXP     int64 = 100
	ShortStreakBonus int64 = 50  // streak >= ShortStreakDays
	LongStreakBonus  int64 = 100 // streak >= LongStreakDays
	ShortStreakDays        = 3
	LongStreakDays         = 7
)

var ErrNegativeXP = errors.New("xp grant must not be negative")

// Outcome is the result of applying one event to a user snapshot.
type Outcome struct {
	User          *models.UserRecord
	Changed       bool
	LeveledUp     bool
	PreviousLevel int
	XPAwarded     int64
}

// Level returns floor(sqrt(xp/100)) + 1. Negative xp is treated as zero.
func Level(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(isqrt(xp/xpPerLevelUnit)) + 1
}

// XPForLevel is the minimum xp at which Level returns level.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return n * n * xpPerLevelUnit
}

func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// StreakBonus is the extra daily-login XP for a streak of the given length.
func StreakBonus(streak int) int64 {
	switch {
	case streak >= LongStreakDays:
		return LongStreakBonus
	case streak >= ShortStreakDays:
		return ShortStreakBonus
	default:
		return 0
	}
}

// ApplyDailyLogin credits the login for today's calendar date (in today's
// location). A second call for the same date is a no-op.
func ApplyDailyLogin(u *models.UserRecord, today time.Time) Outcome {
	next := u.Clone()
	out := Outcome{User: next, PreviousLevel: u.Level}

	todayStr := today.Format(models.DateLayout)
	if u.LastLogin == todayStr {
		return out
	}

	yesterday := today.AddDate(0, 0, -1).Format(models.DateLayout)
	if u.LastLogin != "" && u.LastLogin == yesterday {
		next.LoginStreak = u.LoginStreak + 1
	} else {
		next.LoginStreak = 1
	}

	award := DailyLoginXP + StreakBonus(next.LoginStreak)
	next.XP = addXP(u.XP, award)
	next.LastLogin = todayStr

	out.XPAwarded = award
	out.Changed = true
	recompute(next, &out)
	return out
}

// ApplyXPGrant adds a non-negative xp delta and recomputes level and stage.
func ApplyXPGrant(u *models.UserRecord, amount int64) (Outcome, error) {
	if amount < 0 {
		return Outcome{}, fmt.Errorf("%w: %d", ErrNegativeXP, amount)
	}
	next := u.Clone()
	out := Outcome{User: next, PreviousLevel: u.Level}
	if amount == 0 {
		return out, nil
	}

	next.XP = addXP(u.XP, amount)
	out.XPAwarded = next.XP - maxInt64(u.XP, 0)
	out.Changed = true
	recompute(next, &out)
	return out, nil
}

// Normalize repairs fields that must be derived from others: negative
// counters are clamped and level and stage are recomputed from xp. It reports
// whether anything changed.
func Normalize(u *models.UserRecord) (*models.UserRecord, bool) {
	next := u.Clone()
	if next.XP < 0 {
		next.XP = 0
	}
	if next.LoginStreak < 0 {
		next.LoginStreak = 0
	}
	if next.TasksCompleted < 0 {
		next.TasksCompleted = 0
	}
	next.Level = Level(next.XP)
	next.Stage = StageFor(next.Level)

	changed := next.XP != u.XP ||
		next.LoginStreak != u.LoginStreak ||
		next.TasksCompleted != u.TasksCompleted ||
		next.Level != u.Level ||
		next.Stage != u.Stage
	return next, changed
}

func recompute(u *models.UserRecord, out *Outcome) {
	u.Level = Level(u.XP)
	u.Stage = StageFor(u.Level)
	out.LeveledUp = u.Level > out.PreviousLevel
}

func addXP(xp, delta int64) int64 {
	if xp < 0 {
		xp = 0
	}
	if delta > math.MaxInt64-xp {
		return math.MaxInt64
	}
	return xp + delta
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
