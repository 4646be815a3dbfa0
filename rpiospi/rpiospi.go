// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rpiospi talks to an e-paper controller through go-rpio, which drives
// the BCM283x SPI and GPIO registers from /dev/gpiomem directly.
//
// It is an alternative to the periph host drivers on Raspberry Pi images
// without spidev.
package rpiospi

import (
	"errors"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/epd/epaper"
	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the BCM numbers of the control lines.
type Opts struct {
	DC, CS, RST, Busy int
	// Speed is the SPI clock. Defaults to 4MHz.
	Speed physic.Frequency
}

// DefaultOpts matches the wiring of the e-paper HATs.
var DefaultOpts = Opts{DC: 25, CS: 8, RST: 17, Busy: 24}

// maxTxSize bounds a single SPI exchange.
const maxTxSize = 4096

type outputPin interface {
	High()
	Low()
}

// Transport implements epaper.Transport.
type Transport struct {
	dc, cs   outputPin
	transmit func(data ...byte)
	scratch  []byte
}

// Open maps the GPIO registers and configures SPI0.
//
// Call Close once done.
func Open(opts *Opts) (*Transport, *Pin, *Pin, error) {
	if err := rpio.Open(); err != nil {
		return nil, nil, nil, fmt.Errorf("rpiospi: %w", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		_ = rpio.Close()
		return nil, nil, nil, fmt.Errorf("rpiospi: %w", err)
	}
	speed := opts.Speed
	if speed == 0 {
		speed = 4 * physic.MegaHertz
	}
	rpio.SpiSpeed(int(speed / physic.Hertz))
	rpio.SpiMode(0, 0)

	// Chip select is driven by hand, not by the SPI block.
	dc, cs := rpio.Pin(opts.DC), rpio.Pin(opts.CS)
	dc.Mode(rpio.Output)
	cs.Mode(rpio.Output)
	cs.High()

	t := newTransport(dc, cs, rpio.SpiTransmit)
	return t, NewPin(opts.RST), NewPin(opts.Busy), nil
}

func newTransport(dc, cs outputPin, transmit func(data ...byte)) *Transport {
	return &Transport{dc: dc, cs: cs, transmit: transmit, scratch: make([]byte, 0, maxTxSize)}
}

// Close releases SPI0 and unmaps the registers.
func (t *Transport) Close() error {
	rpio.SpiEnd(rpio.Spi0)
	return rpio.Close()
}

// Command implements epaper.Transport.
func (t *Transport) Command(op byte) error {
	t.dc.Low()
	t.tx([]byte{op})
	return nil
}

// Data implements epaper.Transport.
func (t *Transport) Data(p []byte) error {
	t.dc.High()
	t.tx(p)
	return nil
}

// tx sends p in bounded chunks. The exchange overwrites its buffer with the
// bytes read back, so p is copied first.
func (t *Transport) tx(p []byte) {
	t.cs.Low()
	for len(p) > 0 {
		n := len(p)
		if n > maxTxSize {
			n = maxTxSize
		}
		t.scratch = append(t.scratch[:0], p[:n]...)
		t.transmit(t.scratch...)
		p = p[n:]
	}
	t.cs.High()
}

func (t *Transport) String() string {
	return "rpiospi.Transport{spi0}"
}

// Pin is a BCM GPIO driven through go-rpio. It implements gpio.PinIO so it
// can serve as the reset and busy line of epaper.New.
type Pin struct {
	n    rpio.Pin
	pull gpio.Pull
}

// NewPin returns the BCM GPIO n.
func NewPin(n int) *Pin {
	return &Pin{n: rpio.Pin(n), pull: gpio.PullNoChange}
}

func (p *Pin) String() string {
	return p.Name()
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return fmt.Sprintf("GPIO%d", p.n)
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return int(p.n)
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return ""
}

// In implements gpio.PinIn. Edge detection is not supported.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("rpiospi: edge detection is not supported")
	}
	p.n.Input()
	switch pull {
	case gpio.Float:
		p.n.PullOff()
	case gpio.PullDown:
		p.n.PullDown()
	case gpio.PullUp:
		p.n.PullUp()
	}
	if pull != gpio.PullNoChange {
		p.pull = pull
	}
	return nil
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	return p.n.Read() == rpio.High
}

// WaitForEdge implements gpio.PinIn.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	return p.pull
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.n.Output()
	if l {
		p.n.High()
	} else {
		p.n.Low()
	}
	return nil
}

// PWM implements gpio.PinOut.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("rpiospi: pwm is not supported")
}

var _ epaper.Transport = &Transport{}
var _ gpio.PinIO = &Pin{}
