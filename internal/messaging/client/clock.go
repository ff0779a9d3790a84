package client

import "time"

// Timer pending callback created by Clock.AfterFunc
type Timer interface {
	Stop() bool
}

// Clock time source of the controller, swapped for a fake in tests
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock Clock backed by the time package
func RealClock() Clock {
	return realClock{}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
