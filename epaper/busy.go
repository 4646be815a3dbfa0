// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Clock is the time source used for delays and busy polling.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// busyPollInterval is the pause between two reads of the busy line.
const busyPollInterval = time.Millisecond

// busyMonitor waits for the controller to finish an operation.
type busyMonitor struct {
	pin     gpio.PinIn
	active  gpio.Level
	timeout time.Duration
	clock   Clock
	logger  *log.Logger
}

// wait polls the busy line until it leaves the active level. A timeout is
// reported through the logger and otherwise ignored: the panel may still
// finish and the caller carries on. Without a busy line wait sleeps for
// fallback. It returns the time spent waiting.
func (m *busyMonitor) wait(label string, fallback time.Duration) time.Duration {
	if m.pin == nil {
		m.clock.Sleep(fallback)
		m.logf("%s: %s (fixed)", label, fallback)
		return fallback
	}

	start := m.clock.Now()
	for m.pin.Read() == m.active {
		m.clock.Sleep(busyPollInterval)
		if m.clock.Now().Sub(start) > m.timeout {
			m.logf("%s: busy timeout after %s", label, m.clock.Now().Sub(start))
			break
		}
	}

	elapsed := m.clock.Now().Sub(start)
	m.logf("%s: %s", label, elapsed)
	return elapsed
}

func (m *busyMonitor) logf(format string, v ...interface{}) {
	if m.logger == nil {
		return
	}
	m.logger.Printf("epaper: "+format, v...)
}
