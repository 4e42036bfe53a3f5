// Package dlog is printd's leveled logger: a small wrapper over the
// standard library "log" package rather than a third-party logging
// framework. See DESIGN.md for why.
package dlog

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// Level is a closed set of log severities, following the pack-wide
// enum idiom (a zero-value singleton type with accessor methods).
type Level uint8

const (
	levelNone Level = iota
	levelError
	levelWarning
	levelInfo
	levelDebug
)

// ELevel is the enum namespace: ELevel.Error(), ELevel.Info(), etc.
var ELevel = Level(levelNone)

func (Level) None() Level    { return Level(levelNone) }
func (Level) Error() Level   { return Level(levelError) }
func (Level) Warning() Level { return Level(levelWarning) }
func (Level) Info() Level    { return Level(levelInfo) }
func (Level) Debug() Level   { return Level(levelDebug) }

func (l *Level) Parse(s string) error {
	val, err := enum.ParseInt(reflect.TypeOf(l), s, true, true)
	if err == nil {
		*l = val.(Level)
	}
	return err
}

func (l Level) String() string {
	switch l {
	case ELevel.None():
		return "NONE"
	case ELevel.Error():
		return "ERROR"
	case ELevel.Warning():
		return "WARNING"
	case ELevel.Info():
		return "INFO"
	case ELevel.Debug():
		return "DEBUG"
	default:
		return enum.StringInt(l, reflect.TypeOf(l))
	}
}
