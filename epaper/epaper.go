// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3/rpi"
)

// PartialUpdate defines if the display should do a full update or just a partial update.
type PartialUpdate bool

const (
	// Full should update the complete display.
	Full PartialUpdate = false
	// Partial should update only partial parts of the display.
	Partial PartialUpdate = true
)

// resetPulse is the length of each half of the hardware reset pulse.
const resetPulse = 10 * time.Millisecond

// Dev defines the handler which is used to access the display.
//
// Dev is not safe for concurrent use.
type Dev struct {
	t    Transport
	rst  gpio.PinOut
	busy busyMonitor

	clock Clock
	opts  *Opts
	proto protocol

	frame    *frame
	rotation Rotation
	mode     PartialUpdate

	// partial is set while the controller holds the partial refresh
	// waveform and needs no wake before the next partial update.
	partial bool
}

// New creates new handler which is used to access the display. rst and busy
// may be nil: without a reset line the panel is never put into deep sleep,
// without a busy line fixed delays are used.
func New(t Transport, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	proto, err := newProtocol(opts)
	if err != nil {
		return nil, err
	}

	if rst != nil {
		if err := rst.Out(gpio.High); err != nil {
			return nil, err
		}
	}
	if busy != nil {
		if err := busy.In(gpio.Float, gpio.NoEdge); err != nil {
			return nil, err
		}
	}

	d := &Dev{
		t:   t,
		rst: rst,
		busy: busyMonitor{
			pin:     busy,
			active:  opts.BusyLevel,
			timeout: opts.BusyTimeout,
			clock:   systemClock{},
			logger:  opts.Logger,
		},
		clock:    systemClock{},
		opts:     opts,
		proto:    proto,
		frame:    newFrame(opts.Geometry, opts.Planes, opts.Paged),
		rotation: opts.Rotation,
		mode:     Full,
	}

	return d, nil
}

// NewHat creates new handler which is used to access the display. Default Waveshare Hat configuration is used.
func NewHat(p spi.Port, opts *Opts) (*Dev, error) {
	dc := rpi.P1_22
	cs := rpi.P1_24
	rst := rpi.P1_11
	busy := rpi.P1_18

	t, err := NewSPI(p, dc, cs)
	if err != nil {
		return nil, err
	}
	return New(t, rst, busy, opts)
}

// setClock replaces the time source.
func (d *Dev) setClock(c Clock) {
	d.clock = c
	d.busy.clock = c
}

// String returns a string containing configuration information.
func (d *Dev) String() string {
	return fmt.Sprintf("epaper.Dev{%s, %s, %dx%d}", d.opts.Model, d.opts.Family, d.opts.Width, d.opts.Height)
}

// ColorModel returns image1bit.BitModel for black/white panels and
// ColorModel for panels with a red plane.
func (d *Dev) ColorModel() color.Model {
	if d.frame.hasRed() {
		return ColorModel
	}
	return image1bit.BitModel
}

// Bounds returns the logical drawing area for the current rotation.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rectangle{Max: d.opts.LogicalSize(d.rotation)}
}

// Rotation returns the current drawing orientation.
func (d *Dev) Rotation() Rotation {
	return d.rotation
}

// SetRotation changes the drawing orientation. It only affects subsequent
// drawing and windowed updates.
func (d *Dev) SetRotation(r Rotation) {
	d.rotation = r & 3
}

// SetUpdateMode changes the way Draw applies changes. In Full mode (the
// default) the whole panel is refreshed. In Partial mode only the drawn area
// is refreshed, aligned to multiples of 8 on the physical horizontal axis.
func (d *Dev) SetUpdateMode(mode PartialUpdate) {
	d.mode = mode
}

// SetPixel sets the pixel at logical position (x, y). Positions outside the
// drawing area, and rows outside the active page while paging, are ignored.
func (d *Dev) SetPixel(x, y int, c Color) {
	px, py, ok := d.opts.MapPixel(d.rotation, x, y)
	if !ok {
		return
	}
	px, _, _, _ = d.toFrame(px, py, 1, 1)
	d.frame.setPixel(px, py, toColor(c, d.frame.hasRed()))
}

// Pixel returns the color at logical position (x, y).
func (d *Dev) Pixel(x, y int) Color {
	px, py, ok := d.opts.MapPixel(d.rotation, x, y)
	if !ok {
		return White
	}
	px, _, _, _ = d.toFrame(px, py, 1, 1)
	return d.frame.pixel(px, py)
}

// Set implements draw.Image.
func (d *Dev) Set(x, y int, c color.Color) {
	d.SetPixel(x, y, toColor(c, d.frame.hasRed()))
}

// At implements image.Image.
func (d *Dev) At(x, y int) color.Color {
	c := d.Pixel(x, y)
	if !d.frame.hasRed() {
		return image1bit.Bit(c == White)
	}
	return c
}

// Fill sets every pixel held in memory to c.
func (d *Dev) Fill(c Color) {
	d.frame.clear(toColor(c, d.frame.hasRed()))
}

// Window returns the controller window for the logical rectangle at (x, y)
// sized w×h. ok is false when the rectangle lies off the panel.
func (d *Dev) Window(x, y, w, h int) (Window, bool) {
	x, y, w, h = d.opts.MapRegion(d.rotation, x, y, w, h)
	return d.opts.ComputeWindow(d.toFrame(x, y, w, h))
}

// toFrame converts a physical rectangle to frame coordinates.
func (d *Dev) toFrame(x, y, w, h int) (int, int, int, int) {
	if d.opts.FlipX {
		x = d.opts.Width - x - w
	}
	return x, y, w, h
}

// Draw draws the given image to the display and refreshes it according to
// the update mode. Only the destination area is refreshed in Partial mode.
//
// A paged device keeps no frame between calls: everything outside dstRect
// is sent as white.
func (d *Dev) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	if d.rendering() {
		return nil
	}

	r := dstRect.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}
	sp = sp.Add(r.Min.Sub(dstRect.Min))
	paint := func(dst draw.Image) {
		draw.Draw(dst, r, src, sp, draw.Src)
	}

	if d.mode == Full {
		if d.opts.Paged {
			return d.DrawPaged(paint)
		}
		paint(d)
		return d.Update()
	}

	// The window covers exactly the pixels SetPixel touched.
	x, y, w, h := d.opts.pixelRegion(d.rotation, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	win, ok := d.opts.ComputeWindow(d.toFrame(x, y, w, h))
	if !ok {
		return nil
	}
	if d.opts.Paged {
		return d.drawPagedWindow(paint, win)
	}
	paint(d)

	eh := errorHandler{d: d}
	d.partialUpdate(&eh, "Draw", win, d.streamFrom(d.frameRows))
	return eh.err
}

// Halt turns the panel off. The displayed image is retained.
func (d *Dev) Halt() error {
	return d.PowerDown()
}

// rendering reports whether a paged render is in progress.
func (d *Dev) rendering() bool {
	return d.frame.page != -1
}

// waitUntilIdle waits for the busy line. It is called through errorHandler.
func (d *Dev) waitUntilIdle(label string, fallback time.Duration) {
	d.busy.wait(label, fallback)
}

func (d *Dev) reset(eh *errorHandler) {
	if d.rst == nil {
		return
	}
	eh.rstOut(gpio.Low)
	eh.delay(resetPulse)
	eh.rstOut(gpio.High)
	eh.delay(resetPulse)
}

// wake brings the controller out of any state, including deep sleep.
func (d *Dev) wake(eh *errorHandler) {
	d.reset(eh)
	d.proto.wake(eh)
}

// enterPartial prepares the controller for partial updates unless it is
// already prepared.
func (d *Dev) enterPartial(eh *errorHandler) {
	if d.partial {
		return
	}
	d.wake(eh)
	d.proto.initPartial(eh)
	d.partial = eh.err == nil
}

// sleep ends a full update. Controllers without a reset line stay out of
// deep sleep since only a reset pulse wakes them.
func (d *Dev) sleep(eh *errorHandler) {
	if d.rst == nil {
		d.proto.powerDown(eh, false)
		return
	}
	d.proto.sleep(eh)
}

var _ display.Drawer = &Dev{}
var _ draw.Image = &Dev{}
