// Package hold resolves the symbolic job-hold-until keyword to a
// wall-clock instant (spec.md §4.3, component C5). It has no
// dependency on job or dispatch: the store and dispatcher only ever
// hand it a keyword string and get back a time.Time.
package hold

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JeffreyRichter/enum/enum"
	"github.com/pkg/errors"
)

// Keyword is the closed set of non-numeric job-hold-until values
// (spec.md §4.3 table). Time-of-day values (HH:MM[:SS]) don't fit the
// enum and are recognized separately by Resolve.
type Keyword int8

const (
	keywordNone         Keyword = iota // not a recognized symbolic keyword
	keywordIndefinite
	keywordDayTime
	keywordEvening
	keywordNight
	keywordSecondShift
	keywordThirdShift
	keywordWeekend
)

var EKeyword = Keyword(keywordNone)

func (Keyword) None() Keyword        { return keywordNone }
func (Keyword) Indefinite() Keyword  { return keywordIndefinite }
func (Keyword) DayTime() Keyword     { return keywordDayTime }
func (Keyword) Evening() Keyword     { return keywordEvening }
func (Keyword) Night() Keyword       { return keywordNight }
func (Keyword) SecondShift() Keyword { return keywordSecondShift }
func (Keyword) ThirdShift() Keyword  { return keywordThirdShift }
func (Keyword) Weekend() Keyword     { return keywordWeekend }

func (k Keyword) String() string {
	switch k {
	case EKeyword.None():
		return "none"
	case EKeyword.Indefinite():
		return "indefinite"
	case EKeyword.DayTime():
		return "day-time"
	case EKeyword.Evening():
		return "evening"
	case EKeyword.Night():
		return "night"
	case EKeyword.SecondShift():
		return "second-shift"
	case EKeyword.ThirdShift():
		return "third-shift"
	case EKeyword.Weekend():
		return "weekend"
	default:
		return enum.StringInt(k, reflect.TypeOf(k))
	}
}

func parseKeyword(s string) Keyword {
	switch s {
	case "indefinite":
		return EKeyword.Indefinite()
	case "day-time":
		return EKeyword.DayTime()
	case "evening":
		return EKeyword.Evening()
	case "night":
		return EKeyword.Night()
	case "second-shift":
		return EKeyword.SecondShift()
	case "third-shift":
		return EKeyword.ThirdShift()
	case "weekend":
		return EKeyword.Weekend()
	default:
		return EKeyword.None()
	}
}

// ErrUnrecognized is returned by Resolve for a job-hold-until value that
// is neither a known keyword nor a well-formed HH:MM[:SS].
var ErrUnrecognized = errors.New("hold: unrecognized job-hold-until value")

// atLocal returns today's date (relative to now's location) at the
// given hour/minute, zero seconds/nanoseconds.
func atLocal(now time.Time, hour, min int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
}

// Resolve maps a job-hold-until value to a target instant (spec.md
// §4.3). A zero Time return means "indefinite" (hold_until = 0, never
// auto-release); the caller (job.Record.HoldUntil) treats a zero value
// specially via IsHeldIndefinitely.
func Resolve(value string, now time.Time) (time.Time, error) {
	if kw := parseKeyword(value); kw != EKeyword.None() {
		return resolveKeyword(kw, now), nil
	}
	return resolveClock(value, now)
}

func resolveKeyword(kw Keyword, now time.Time) time.Time {
	hour := now.Hour()
	switch kw {
	case EKeyword.Indefinite():
		return time.Time{}
	case EKeyword.DayTime():
		if hour >= 18 {
			return now
		}
		morning := atLocal(now, 6, 0)
		if !morning.After(now) {
			morning = morning.AddDate(0, 0, 1)
		}
		return morning
	case EKeyword.Evening(), EKeyword.Night():
		if hour < 6 || hour >= 18 {
			return now
		}
		return atLocal(now, 18, 0)
	case EKeyword.SecondShift():
		if hour >= 16 {
			return now
		}
		return atLocal(now, 16, 0)
	case EKeyword.ThirdShift():
		if hour < 8 {
			return now
		}
		return atLocal(now, 0, 0).AddDate(0, 0, 1)
	case EKeyword.Weekend():
		wd := now.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return now
		}
		daysUntilSaturday := (int(time.Saturday) - int(wd) + 7) % 7
		if daysUntilSaturday == 0 {
			daysUntilSaturday = 7
		}
		return atLocal(now, 0, 0).AddDate(0, 0, daysUntilSaturday)
	default:
		return time.Time{}
	}
}

// resolveClock parses HH:MM[:SS] and returns the next UTC occurrence of
// that time of day (spec.md §4.3: "today if still future, tomorrow
// otherwise").
func resolveClock(value string, now time.Time) (time.Time, error) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, ErrUnrecognized
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, ErrUnrecognized
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return time.Time{}, ErrUnrecognized
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return time.Time{}, ErrUnrecognized
		}
	}

	utcNow := now.UTC()
	target := time.Date(utcNow.Year(), utcNow.Month(), utcNow.Day(), hour, min, sec, 0, time.UTC)
	if !target.After(utcNow) {
		target = target.AddDate(0, 0, 1)
	}
	return target, nil
}
