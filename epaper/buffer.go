// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"image/color"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Color is one of the inks a panel can show.
type Color uint8

const (
	White Color = iota
	Black
	Red
)

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	switch c {
	case Black:
		return 0, 0, 0, 0xffff
	case Red:
		return 0xffff, 0, 0, 0xffff
	}
	return 0xffff, 0xffff, 0xffff, 0xffff
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	case Red:
		return "red"
	}
	return "unknown"
}

// ColorModel converts colors to White, Black or Red.
var ColorModel = color.ModelFunc(func(c color.Color) color.Color {
	return toColor(c, true)
})

// toColor resolves c to an ink. Red is only considered when the panel has a
// red plane; otherwise reddish colors fall through to the luminance test.
func toColor(c color.Color, withRed bool) Color {
	switch v := c.(type) {
	case Color:
		if v == Red && !withRed {
			return Black
		}
		return v
	case image1bit.Bit:
		if v == image1bit.On {
			return White
		}
		return Black
	}

	const half = 0x8000

	r, g, b, a := c.RGBA()
	if a < half {
		return White
	}
	if withRed && r > half && g < half && b < half {
		return Red
	}
	if r+g+b < 3*half {
		return Black
	}
	return White
}

// Polarity names which bit value marks an inked pixel in a plane. It is a
// property of the panel family and must match the controller's expectation
// once the plane is complemented for transmission.
type Polarity uint8

const (
	// InkSet planes store ink as 1 bits; white fill is 0x00.
	InkSet Polarity = iota
	// InkClear planes store ink as 0 bits; white fill is 0xFF.
	InkClear
)

// plane is one bit per pixel, MSB first, rows of stride bytes.
type plane struct {
	ink    Polarity
	stride int
	pix    []byte
}

func newPlane(ink Polarity, stride, rows int) *plane {
	p := &plane{
		ink:    ink,
		stride: stride,
		pix:    make([]byte, stride*rows),
	}
	p.fill(false)
	return p
}

func (p *plane) rows() int {
	if p.stride == 0 {
		return 0
	}
	return len(p.pix) / p.stride
}

// fillByte returns the byte value of eight pixels all inked or all white.
func (p *plane) fillByte(ink bool) byte {
	if ink == (p.ink == InkSet) {
		return 0xFF
	}
	return 0x00
}

func (p *plane) fill(ink bool) {
	b := p.fillByte(ink)
	for i := range p.pix {
		p.pix[i] = b
	}
}

func (p *plane) set(x, row int, ink bool) {
	i := row*p.stride + x/8
	mask := byte(0x80) >> uint(x%8)

	if ink == (p.ink == InkSet) {
		p.pix[i] |= mask
	} else {
		p.pix[i] &^= mask
	}
}

func (p *plane) inked(x, row int) bool {
	bit := p.pix[row*p.stride+x/8]&(byte(0x80)>>uint(x%8)) != 0
	return bit == (p.ink == InkSet)
}

// byteAt returns the stored byte; positions outside the buffer read as white.
func (p *plane) byteAt(row, col int) byte {
	if row < 0 || row >= p.rows() || col < 0 || col >= p.stride {
		return p.fillByte(false)
	}
	return p.pix[row*p.stride+col]
}

// frame is the host side image: one or two planes plus the page cursor.
type frame struct {
	geo    Geometry
	planes []*plane

	// page is -1 outside of a paged render.
	page int
}

// newFrame allocates a frame holding the whole panel, or a single page when
// paged is set. The first plane is black, the optional second plane red.
// Without paging the frame is a single page covering the panel.
func newFrame(geo Geometry, inks []Polarity, paged bool) *frame {
	if !paged {
		geo.PageHeight = 0
	}
	rows := geo.pageRows()

	f := &frame{geo: geo, page: -1}
	for _, ink := range inks {
		f.planes = append(f.planes, newPlane(ink, geo.BytesPerRow(), rows))
	}
	return f
}

func (f *frame) hasRed() bool {
	return len(f.planes) > 1
}

// row converts a physical row into a buffer row. ok is false when the row is
// not held in memory, either because it lies outside the active page or
// beyond a page sized buffer.
func (f *frame) row(y int) (int, bool) {
	if f.page != -1 {
		start, end := f.geo.page(f.page)
		if y < start || y >= end {
			return 0, false
		}
		y -= start
	}
	if y < 0 || y >= f.planes[0].rows() {
		return 0, false
	}
	return y, true
}

// setPixel writes a physical pixel. Out of range positions are ignored.
func (f *frame) setPixel(x, y int, c Color) {
	if x < 0 || x >= f.geo.Width || y < 0 || y >= f.geo.Height {
		return
	}
	row, ok := f.row(y)
	if !ok {
		return
	}

	if !f.hasRed() {
		f.planes[0].set(x, row, c != White)
		return
	}

	f.planes[0].set(x, row, c == Black)
	f.planes[1].set(x, row, c == Red)
}

// pixel reads a physical pixel; rows not held in memory read as white.
func (f *frame) pixel(x, y int) Color {
	if x < 0 || x >= f.geo.Width || y < 0 || y >= f.geo.Height {
		return White
	}
	row, ok := f.row(y)
	if !ok {
		return White
	}

	if f.hasRed() && f.planes[1].inked(x, row) {
		return Red
	}
	if f.planes[0].inked(x, row) {
		return Black
	}
	return White
}

// clear fills every plane with the pattern for c.
func (f *frame) clear(c Color) {
	if !f.hasRed() {
		f.planes[0].fill(c != White)
		return
	}
	f.planes[0].fill(c == Black)
	f.planes[1].fill(c == Red)
}

// wire returns the byte at physical row y and byte column col as sent to the
// controller. Every supported controller expects the complement of the
// in-memory plane. Rows not held in memory are sent as white.
func (f *frame) wire(plane, y, col int) byte {
	p := f.planes[plane]
	row, ok := f.row(y)
	if !ok {
		return ^p.fillByte(false)
	}
	return ^p.byteAt(row, col)
}

// wireWhite returns the byte sent for eight white pixels of a plane.
func (f *frame) wireWhite(plane int) byte {
	return ^f.planes[plane].fillByte(false)
}
