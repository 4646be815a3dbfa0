// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// errorHandler is a wrapper for error management. Once an error is recorded
// every further call is skipped.
type errorHandler struct {
	d   *Dev
	err error
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.rst.Out(l)
}

func (eh *errorHandler) sendCommand(cmd byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.t.Command(cmd)
}

func (eh *errorHandler) sendData(data []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.t.Data(data)
}

func (eh *errorHandler) waitUntilIdle(label string, fallback time.Duration) {
	if eh.err != nil {
		return
	}
	eh.d.waitUntilIdle(label, fallback)
}

func (eh *errorHandler) delay(d time.Duration) {
	if eh.err != nil {
		return
	}
	eh.d.clock.Sleep(d)
}
