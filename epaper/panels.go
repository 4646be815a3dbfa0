// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Family identifies the command set of a controller.
type Family uint8

const (
	// UC8151 covers the UC8151D and the IL0373 it derives from.
	UC8151 Family = iota
	// SSD1680 covers the SSD1680 and SSD1675 command sets.
	SSD1680
)

func (f Family) String() string {
	switch f {
	case UC8151:
		return "UC8151"
	case SSD1680:
		return "SSD1680"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// Command is a controller command with its parameter bytes.
type Command struct {
	Op   byte
	Data []byte
	// Wait for the busy line to clear after the command.
	Wait bool
}

// RAMWrite is one transfer of a plane into controller RAM.
type RAMWrite struct {
	// Cmd starts the RAM transfer.
	Cmd byte
	// Plane is the index of the plane to send, or -1 to send white.
	Plane int
}

// Mirror selects how a partial update keeps both controller RAM banks in
// step.
type Mirror uint8

const (
	// NoMirror writes and refreshes the window once.
	NoMirror Mirror = iota
	// MirrorRefresh repeats the write and the refresh.
	MirrorRefresh
	// MirrorWrite repeats the write without a second refresh.
	MirrorWrite
)

// Timing holds the fixed delays used in place of the busy line when none is
// wired.
type Timing struct {
	PowerOn        time.Duration
	PowerOff       time.Duration
	FullRefresh    time.Duration
	PartialRefresh time.Duration
}

// Opts definies the structure of the display configuration.
type Opts struct {
	Model  Model
	Family Family
	Geometry

	// Planes lists the polarity of each plane: black first, then the
	// optional red plane.
	Planes []Polarity

	// Init is sent after each reset pulse.
	Init []Command
	// PartialInit switches the controller to the partial refresh waveform.
	PartialInit []Command

	// FullWrites and PartialWrites list the RAM transfers of a full and a
	// partial update in order.
	FullWrites    []RAMWrite
	PartialWrites []RAMWrite
	Mirror        Mirror

	// Update is only used by SSD1680 panels.
	Update UpdateControl
	// DataEntry is the SSD1680 RAM data entry mode. X always increments.
	// Zero selects 0x03; 0x01 fills RAM from the last row up.
	DataEntry byte
	// FlipX mirrors the columns in the frame, for panels whose source
	// driver scans right to left.
	FlipX bool

	// BusyLevel is the level of the busy line while the controller works.
	BusyLevel   gpio.Level
	BusyTimeout time.Duration
	// PartialDelay is the pause after each partial refresh.
	PartialDelay time.Duration
	Timing       Timing

	// Rotation is the initial drawing orientation.
	Rotation Rotation
	// Paged keeps a single page of the frame in memory. Drawing then goes
	// through DrawPaged and DrawPagedToWindow.
	Paged bool
	// Logger receives busy wait timings and timeouts. Nil disables logging.
	Logger *log.Logger
}

func (o *Opts) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("epaper: invalid panel size %dx%d", o.Width, o.Height)
	}
	if len(o.Planes) < 1 || len(o.Planes) > 2 {
		return fmt.Errorf("epaper: need one or two planes, got %d", len(o.Planes))
	}
	switch o.DataEntry {
	case 0, ssdDataEntryXYIncrement, ssdDataEntryYDecrement:
	default:
		return fmt.Errorf("epaper: unsupported data entry mode %#02x", o.DataEntry)
	}
	for _, w := range append(append([]RAMWrite{}, o.FullWrites...), o.PartialWrites...) {
		if w.Plane >= len(o.Planes) {
			return fmt.Errorf("epaper: RAM write %#02x references plane %d", w.Cmd, w.Plane)
		}
	}
	return nil
}

// ucPartialLUT returns a partial refresh waveform of n bytes driving the
// given level for a single phase.
func ucPartialLUT(level byte, n int) []byte {
	lut := make([]byte, n)
	copy(lut, []byte{level, 0x20, 0x01, 0x00, 0x00, 0x01})
	return lut
}

// GDEW029T5D is the 2.9" black/white panel with an UC8151D controller.
var GDEW029T5D = Opts{
	Model:    "GDEW029T5D",
	Family:   UC8151,
	Geometry: Geometry{Width: 128, Height: 296, PageHeight: 16},
	Planes:   []Polarity{InkSet},
	Init: []Command{
		// LUT from OTP, 128x296.
		{Op: ucPanelSetting, Data: []byte{0x1f}},
		{Op: ucResolutionSetting, Data: []byte{128, 296 >> 8, 296 & 0xFF}},
		{Op: ucVcomDataInterval, Data: []byte{0x97}},
	},
	PartialInit: []Command{
		// LUT from registers.
		{Op: ucPanelSetting, Data: []byte{0xbf}},
		{Op: ucVcomDataInterval, Data: []byte{0x17}},
		{Op: ucLutVcom, Data: ucPartialLUT(0x00, 44)},
		{Op: ucLutWW, Data: ucPartialLUT(0x00, 42)},
		{Op: ucLutBW, Data: ucPartialLUT(0x80, 42)},
		{Op: ucLutWB, Data: ucPartialLUT(0x40, 42)},
		{Op: ucLutBB, Data: ucPartialLUT(0x00, 42)},
	},
	FullWrites: []RAMWrite{
		{Cmd: ucDataStartTx1, Plane: -1},
		{Cmd: ucDataStartTx2, Plane: 0},
	},
	PartialWrites: []RAMWrite{
		{Cmd: ucDataStartTx2, Plane: 0},
	},
	Mirror:       MirrorRefresh,
	BusyLevel:    gpio.Low,
	BusyTimeout:  10 * time.Second,
	PartialDelay: 100 * time.Millisecond,
	Timing: Timing{
		PowerOn:        100 * time.Millisecond,
		PowerOff:       100 * time.Millisecond,
		FullRefresh:    3 * time.Second,
		PartialRefresh: 500 * time.Millisecond,
	},
}

// GDEH029Z13 is the 2.9" black/white/red panel with an UC8151D controller.
var GDEH029Z13 = Opts{
	Model:    "GDEH029Z13",
	Family:   UC8151,
	Geometry: Geometry{Width: 128, Height: 296, PageHeight: 16},
	Planes:   []Polarity{InkSet, InkSet},
	Init: []Command{
		// LUT from OTP.
		{Op: ucPanelSetting, Data: []byte{0x8f}},
		{Op: ucResolutionSetting, Data: []byte{128, 296 >> 8, 296 & 0xFF}},
		{Op: ucVcomDataInterval, Data: []byte{0x77}},
	},
	FullWrites: []RAMWrite{
		{Cmd: ucDataStartTx1, Plane: 0},
		{Cmd: ucDataStartTx2, Plane: 1},
	},
	PartialWrites: []RAMWrite{
		{Cmd: ucDataStartTx1, Plane: 0},
		{Cmd: ucDataStartTx2, Plane: 1},
	},
	Mirror:       NoMirror,
	BusyLevel:    gpio.Low,
	BusyTimeout:  20 * time.Second,
	PartialDelay: 500 * time.Millisecond,
	Timing: Timing{
		PowerOn:        100 * time.Millisecond,
		PowerOff:       100 * time.Millisecond,
		FullRefresh:    16 * time.Second,
		PartialRefresh: 16 * time.Second,
	},
}

// HINKE029A10 is the 2.9" black/white/red panel sold by Hink. Its red RAM
// marks red pixels with set bits, so the red plane stores ink as clear bits.
var HINKE029A10 = Opts{
	Model:    "HINKE029A10",
	Family:   SSD1680,
	Geometry: Geometry{Width: 128, Height: 296, PageHeight: 16},
	Planes:   []Polarity{InkSet, InkClear},
	Init: []Command{
		{Op: 0x74, Data: []byte{0x54}},
		{Op: 0x7E, Data: []byte{0x3B}},
		{Op: ssdVcomWriteRegisterControl, Data: []byte{0x04, 0x63}},
		{Op: ssdBoosterSoftStartControl, Data: []byte{0x8F, 0x8F, 0x8F, 0x3F}},
		{Op: ssdDriverOutputControl, Data: []byte{0x27, 0x01, 0x00}},
		{Op: ssdBorderWaveformControl, Data: []byte{0xC0}},
		{Op: ssdTempSensorSelect, Data: []byte{0x80}},
		// Load temperature and waveform.
		{Op: ssdDisplayUpdateControl2, Data: []byte{0xB1}},
		{Op: ssdMasterActivation, Wait: true},
	},
	FullWrites: []RAMWrite{
		{Cmd: ssdWriteRAMRed, Plane: 1},
		{Cmd: ssdWriteRAMBW, Plane: 0},
	},
	PartialWrites: []RAMWrite{
		{Cmd: ssdWriteRAMBW, Plane: 0},
		{Cmd: ssdWriteRAMRed, Plane: 1},
	},
	Mirror: NoMirror,
	Update: UpdateControl{
		PowerOn:  0xC0,
		PowerOff: 0x83,
		Full:     0xC7,
		Partial:  0xC7,
	},
	DataEntry: ssdDataEntryYDecrement,
	FlipX:     true,
	BusyLevel:    gpio.High,
	BusyTimeout:  30 * time.Second,
	PartialDelay: 500 * time.Millisecond,
	Timing: Timing{
		PowerOn:        100 * time.Millisecond,
		PowerOff:       150 * time.Millisecond,
		FullRefresh:    20 * time.Second,
		PartialRefresh: 20 * time.Second,
	},
}

// GDEY027T91 is the 2.7" black/white panel with an SSD1680 controller.
var GDEY027T91 = Opts{
	Model:    "GDEY027T91",
	Family:   SSD1680,
	Geometry: Geometry{Width: 176, Height: 264, PageHeight: 16},
	Planes:   []Polarity{InkSet},
	Init: []Command{
		{Op: ssdBorderWaveformControl, Data: []byte{0x05}},
		// Internal temperature sensor.
		{Op: ssdTempSensorSelect, Data: []byte{0x80}},
	},
	FullWrites: []RAMWrite{
		{Cmd: ssdWriteRAMBW, Plane: 0},
		{Cmd: ssdWriteRAMRed, Plane: 0},
	},
	PartialWrites: []RAMWrite{
		{Cmd: ssdWriteRAMBW, Plane: 0},
	},
	Mirror: MirrorWrite,
	Update: UpdateControl{
		PowerOn:  0xC0,
		PowerOff: 0x83,
		Full:     0xF7,
		Partial:  0xFC,
	},
	BusyLevel:    gpio.High,
	BusyTimeout:  10 * time.Second,
	PartialDelay: 300 * time.Millisecond,
	Timing: Timing{
		PowerOn:        100 * time.Millisecond,
		PowerOff:       150 * time.Millisecond,
		FullRefresh:    4000 * time.Millisecond,
		PartialRefresh: 700 * time.Millisecond,
	},
}

var panels = map[Model]*Opts{
	GDEW029T5D.Model:  &GDEW029T5D,
	GDEH029Z13.Model:  &GDEH029Z13,
	HINKE029A10.Model: &HINKE029A10,
	GDEY027T91.Model:  &GDEY027T91,
}

// Model is the name of a supported panel.
type Model string

// Models returns the names of the supported panels.
func Models() []string {
	var names []string
	for m := range panels {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return names
}

func (m Model) String() string {
	return string(m)
}

// Set sets the Model to a value represented by the string s. Set implements the flag.Value interface.
func (m *Model) Set(s string) error {
	for name := range panels {
		if strings.EqualFold(string(name), s) {
			*m = name
			return nil
		}
	}
	return fmt.Errorf("unknown model %q: expected one of %s", s, strings.Join(Models(), ", "))
}

// Opts returns a copy of the panel configuration.
func (m Model) Opts() (*Opts, error) {
	o, ok := panels[m]
	if !ok {
		return nil, fmt.Errorf("epaper: unknown model %q", string(m))
	}
	c := *o
	return &c, nil
}
