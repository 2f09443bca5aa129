package game

import (
	"time"

	"github.com/scythe504/coral-backend/internal"
)

// Clock schedules the delayed transitions of every room.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) internal.Timer
}

type realClock struct{}

func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) internal.Timer {
	return time.AfterFunc(d, f)
}
