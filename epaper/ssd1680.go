// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"encoding/binary"
	"time"
)

// SSD1680 commands
const (
	ssdDriverOutputControl            byte = 0x01
	ssdBoosterSoftStartControl        byte = 0x0C
	ssdDeepSleepMode                  byte = 0x10
	ssdDataEntryModeSetting           byte = 0x11
	ssdSWReset                        byte = 0x12
	ssdTempSensorSelect               byte = 0x18
	ssdMasterActivation               byte = 0x20
	ssdDisplayUpdateControl2          byte = 0x22
	ssdWriteRAMBW                     byte = 0x24
	ssdWriteRAMRed                    byte = 0x26
	ssdVcomWriteRegisterControl       byte = 0x2B
	ssdBorderWaveformControl          byte = 0x3C
	ssdSetRAMXAddressStartEndPosition byte = 0x44
	ssdSetRAMYAddressStartEndPosition byte = 0x45
	ssdSetRAMXAddressCounter          byte = 0x4E
	ssdSetRAMYAddressCounter          byte = 0x4F
)

// Data entry modes, X first.
const (
	ssdDataEntryYDecrement  byte = 0x01
	ssdDataEntryXYIncrement byte = 0x03
)

// ssdResetDelay is the minimum pause after a software reset.
const ssdResetDelay = 10 * time.Millisecond

// UpdateControl holds the display update control 2 sequences of an SSD1680
// panel.
type UpdateControl struct {
	PowerOn  byte
	PowerOff byte
	Full     byte
	Partial  byte
}

type ssd1680 struct {
	opts *Opts

	// powered tracks the analog supply; it stays on between partial
	// updates.
	powered bool
}

func (p *ssd1680) wake(ctrl controller) {
	ctrl.sendCommand(ssdSWReset)
	ctrl.waitUntilIdle("software reset", ssdResetDelay)

	sendCommands(ctrl, p.opts.Init, p.opts.Timing.PowerOn)

	// A reset loses the supply state.
	p.powered = false
	p.powerOn(ctrl)
}

func (p *ssd1680) powerOn(ctrl controller) {
	if p.powered {
		return
	}
	p.activate(ctrl, p.opts.Update.PowerOn)
	ctrl.waitUntilIdle("power on", p.opts.Timing.PowerOn)
	p.powered = true
}

func (p *ssd1680) initPartial(ctrl controller) {
	sendCommands(ctrl, p.opts.PartialInit, p.opts.Timing.PowerOn)
	p.powerOn(ctrl)
}

func (p *ssd1680) fullArea(ctrl controller) {
	g := p.opts.Geometry
	win, _ := g.ComputeWindow(0, 0, g.Width, g.Height)
	p.beginWindow(ctrl, win)
}

func (p *ssd1680) beginWindow(ctrl controller, win Window) {
	entry := p.opts.DataEntry
	if entry == 0 {
		entry = ssdDataEntryXYIncrement
	}
	ctrl.sendCommand(ssdDataEntryModeSetting)
	ctrl.sendData([]byte{entry})

	ys, ye := win.Mem.Min.Y, win.Mem.Max.Y-1
	if entry == ssdDataEntryYDecrement {
		// Frame rows still go out top first; RAM row 0 is the bottom one.
		last := p.opts.Height - 1
		ys, ye = last-ys, last-ye
	}

	var startEnd [4]byte

	ctrl.sendCommand(ssdSetRAMXAddressStartEndPosition)
	ctrl.sendData([]byte{byte(win.Mem.Min.X), byte(win.Mem.Max.X - 1)})

	binary.LittleEndian.PutUint16(startEnd[0:], uint16(ys))
	binary.LittleEndian.PutUint16(startEnd[2:], uint16(ye))

	ctrl.sendCommand(ssdSetRAMYAddressStartEndPosition)
	ctrl.sendData(startEnd[:])

	ctrl.sendCommand(ssdSetRAMXAddressCounter)
	ctrl.sendData([]byte{byte(win.Mem.Min.X)})

	ctrl.sendCommand(ssdSetRAMYAddressCounter)
	ctrl.sendData(startEnd[:2])
}

func (p *ssd1680) endWindow(ctrl controller) {
}

func (p *ssd1680) refresh(ctrl controller, mode PartialUpdate, label string) {
	seq, fallback := p.opts.Update.Full, p.opts.Timing.FullRefresh
	if mode == Partial {
		seq, fallback = p.opts.Update.Partial, p.opts.Timing.PartialRefresh
	}

	p.activate(ctrl, seq)
	ctrl.waitUntilIdle(label, fallback)
}

func (p *ssd1680) sleep(ctrl controller) {
	p.powerDown(ctrl, false)
}

func (p *ssd1680) powerDown(ctrl controller, deep bool) {
	if p.powered {
		p.activate(ctrl, p.opts.Update.PowerOff)
		ctrl.waitUntilIdle("power off", p.opts.Timing.PowerOff)
		p.powered = false
	}

	if deep {
		// RAM content is lost.
		ctrl.sendCommand(ssdDeepSleepMode)
		ctrl.sendData([]byte{0x01})
	}
}

func (p *ssd1680) activate(ctrl controller, seq byte) {
	ctrl.sendCommand(ssdDisplayUpdateControl2)
	ctrl.sendData([]byte{seq})
	ctrl.sendCommand(ssdMasterActivation)
}
