// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"fmt"
	"time"
)

type controller interface {
	sendCommand(byte)
	sendData([]byte)
	// waitUntilIdle blocks until the controller is ready. Without a busy
	// line it sleeps for fallback instead.
	waitUntilIdle(label string, fallback time.Duration)
	delay(time.Duration)
}

// protocol is the command sequencing of one controller family. The Dev
// decides when to wake, stream and refresh; the protocol decides how.
type protocol interface {
	// wake programs the controller after the reset pulse and powers it on.
	wake(ctrl controller)
	// initPartial loads the partial refresh waveform.
	initPartial(ctrl controller)
	// fullArea prepares a RAM write covering the whole panel.
	fullArea(ctrl controller)
	// beginWindow restricts RAM writes to win.
	beginWindow(ctrl controller, win Window)
	// endWindow undoes beginWindow where the controller needs it.
	endWindow(ctrl controller)
	// refresh transfers RAM to the panel and waits for completion.
	refresh(ctrl controller, mode PartialUpdate, label string)
	// sleep ends a full update.
	sleep(ctrl controller)
	// powerDown turns the panel off; deep also enters deep sleep, which
	// requires a reset pulse to leave.
	powerDown(ctrl controller, deep bool)
}

func newProtocol(opts *Opts) (protocol, error) {
	switch opts.Family {
	case UC8151:
		return &uc8151{opts: opts}, nil
	case SSD1680:
		return &ssd1680{opts: opts}, nil
	}
	return nil, fmt.Errorf("epaper: unknown controller family %v", opts.Family)
}

// sendCommands writes a configuration table.
func sendCommands(ctrl controller, cmds []Command, fallback time.Duration) {
	for _, c := range cmds {
		ctrl.sendCommand(c.Op)
		if len(c.Data) > 0 {
			ctrl.sendData(c.Data)
		}
		if c.Wait {
			ctrl.waitUntilIdle(fmt.Sprintf("command %#02x", c.Op), fallback)
		}
	}
}
