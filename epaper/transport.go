// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Transport moves command and data bytes to the controller. Implementations
// frame each call as its own transaction.
type Transport interface {
	// Command sends a single command byte.
	Command(op byte) error
	// Data sends parameter or RAM bytes for the last command.
	Data(p []byte) error
}

// SPI is a Transport over a periph SPI port with separate data/command and
// chip select lines.
type SPI struct {
	c         conn.Conn
	maxTxSize int

	dc gpio.PinOut
	cs gpio.PinOut
}

// NewSPI connects to the controller. cs may be nil when the SPI port drives
// chip select itself.
func NewSPI(p spi.Port, dc, cs gpio.PinOut) (*SPI, error) {
	c, err := p.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epaper: failed to connect over spi: %v", err)
	}

	return &SPI{
		c:         c,
		maxTxSize: txLimit(c),
		dc:        dc,
		cs:        cs,
	}, nil
}

// Command implements Transport.
func (s *SPI) Command(op byte) error {
	return s.tx(gpio.Low, []byte{op})
}

// Data implements Transport.
func (s *SPI) Data(p []byte) error {
	return s.tx(gpio.High, p)
}

func (s *SPI) tx(dc gpio.Level, p []byte) error {
	if err := s.dc.Out(dc); err != nil {
		return err
	}
	if err := s.csOut(gpio.Low); err != nil {
		return err
	}

	for len(p) > 0 {
		n := len(p)
		if n > s.maxTxSize {
			n = s.maxTxSize
		}
		if err := s.c.Tx(p[:n], nil); err != nil {
			// Release the bus before reporting.
			_ = s.csOut(gpio.High)
			return err
		}
		p = p[n:]
	}

	return s.csOut(gpio.High)
}

func (s *SPI) csOut(l gpio.Level) error {
	if s.cs == nil {
		return nil
	}
	return s.cs.Out(l)
}

// defaultMaxTxSize bounds RAM writes on buses that report no limit.
const defaultMaxTxSize = 4096

// txLimit is the largest data transaction the bus accepts. Plane transfers
// are split into chunks of this size.
func txLimit(c conn.Conn) int {
	if l, ok := c.(conn.Limits); ok {
		if n := l.MaxTxSize(); n > 0 {
			return n
		}
	}
	return defaultMaxTxSize
}

func (s *SPI) String() string {
	return fmt.Sprintf("%s, %s", s.c, s.dc)
}
