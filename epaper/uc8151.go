// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

// UC8151D commands
const (
	ucPanelSetting      byte = 0x00
	ucPowerOff          byte = 0x02
	ucPowerOn           byte = 0x04
	ucBoosterSoftStart  byte = 0x06
	ucDeepSleep         byte = 0x07
	ucDataStartTx1      byte = 0x10
	ucDisplayRefresh    byte = 0x12
	ucDataStartTx2      byte = 0x13
	ucLutVcom           byte = 0x20
	ucLutWW             byte = 0x21
	ucLutBW             byte = 0x22
	ucLutWB             byte = 0x23
	ucLutBB             byte = 0x24
	ucVcomDataInterval  byte = 0x50
	ucResolutionSetting byte = 0x61
	ucPartialWindow     byte = 0x90
	ucPartialIn         byte = 0x91
	ucPartialOut        byte = 0x92
)

// ucDeepSleepCheck is the check code required by the deep sleep command.
const ucDeepSleepCheck byte = 0xA5

type uc8151 struct {
	opts *Opts
}

func (p *uc8151) wake(ctrl controller) {
	sendCommands(ctrl, p.opts.Init, p.opts.Timing.PowerOn)

	ctrl.sendCommand(ucPowerOn)
	ctrl.waitUntilIdle("power on", p.opts.Timing.PowerOn)
}

func (p *uc8151) initPartial(ctrl controller) {
	sendCommands(ctrl, p.opts.PartialInit, p.opts.Timing.PowerOn)
}

// fullArea is a no-op: after power on the data transmission commands cover
// the whole panel.
func (p *uc8151) fullArea(ctrl controller) {
}

func (p *uc8151) beginWindow(ctrl controller, win Window) {
	x, xe := win.AlignedX(), win.AlignedXEnd()
	y, ye := win.Mem.Min.Y, win.Mem.Max.Y-1

	ctrl.sendCommand(ucPartialIn)

	ctrl.sendCommand(ucPartialWindow)
	ctrl.sendData([]byte{
		byte(x % 256),
		byte(xe % 256),
		byte(y / 256),
		byte(y % 256),
		byte(ye / 256),
		byte(ye % 256),
		// Gates scan both inside and outside of the partial window.
		0x01,
	})
}

func (p *uc8151) endWindow(ctrl controller) {
	ctrl.sendCommand(ucPartialOut)
}

func (p *uc8151) refresh(ctrl controller, mode PartialUpdate, label string) {
	fallback := p.opts.Timing.FullRefresh
	if mode == Partial {
		fallback = p.opts.Timing.PartialRefresh
	}

	ctrl.sendCommand(ucDisplayRefresh)
	ctrl.waitUntilIdle(label, fallback)
}

func (p *uc8151) sleep(ctrl controller) {
	p.powerDown(ctrl, true)
}

func (p *uc8151) powerDown(ctrl controller, deep bool) {
	ctrl.sendCommand(ucPowerOff)
	ctrl.waitUntilIdle("power off", p.opts.Timing.PowerOff)

	if deep {
		ctrl.sendCommand(ucDeepSleep)
		ctrl.sendData([]byte{ucDeepSleepCheck})
	}
}
