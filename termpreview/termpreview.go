// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termpreview implements a display.Drawer that renders an e-paper
// frame on the terminal.
//
// Every block on screen covers a square of Scale x Scale pixels. A block is
// red when any of its pixels is red, else black when any is black.
//
// Useful while the panel is still in the mail.
package termpreview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for this display.
type Opts struct {
	Width, Height int
	// Scale is the side of the pixel square covered by one block. Defaults
	// to 2.
	Scale   int
	Palette *ansi256.Palette
	// Color forces ANSI colors on writers that are not a terminal.
	Color bool

	_ struct{}
}

// Dev is an e-paper emulator that outputs to a terminal.
type Dev struct {
	w       io.Writer
	color   bool
	palette ansi256.Palette
	scale   int

	img *image.NRGBA
	buf bytes.Buffer
}

// New returns a Dev that displays on stdout.
//
// ANSI colors are used only when stdout is a terminal.
func New(opts *Opts) *Dev {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	d := NewWriter(colorable.NewColorableStdout(), opts)
	d.color = d.color || tty
	return d
}

// NewWriter returns a Dev that writes to w.
func NewWriter(w io.Writer, opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	s := opts.Scale
	if s <= 0 {
		s = 2
	}
	d := &Dev{
		w:       w,
		color:   opts.Color,
		palette: *p,
		scale:   s,
		img:     image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}
	draw.Draw(d.img, d.img.Rect, image.White, image.Point{}, draw.Src)
	return d
}

func (d *Dev) String() string {
	return fmt.Sprintf("termpreview{%dx%d}", d.img.Rect.Dx(), d.img.Rect.Dy())
}

// Halt implements conn.Resource.
//
// It resets the terminal colors.
func (d *Dev) Halt() error {
	if !d.color {
		return nil
	}
	_, err := io.WriteString(d.w, "\033[0m")
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.img.Rect
}

// Draw implements display.Drawer.
//
// The whole frame is printed again after every call.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(d.img, r, src, sp, draw.Src)
	return d.refresh()
}

type ink uint8

const (
	paper ink = iota
	black
	red
)

// inkOf classifies c the way a black/white/red panel would show it.
func inkOf(c color.Color) ink {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.R >= 0x80 && n.G < 0x80 && n.B < 0x80 {
		return red
	}
	if (299*uint32(n.R)+587*uint32(n.G)+114*uint32(n.B))/1000 < 0x80 {
		return black
	}
	return paper
}

// block returns the darkest ink in the square starting at (x, y).
func (d *Dev) block(x, y int) ink {
	out := paper
	for dy := 0; dy < d.scale; dy++ {
		for dx := 0; dx < d.scale; dx++ {
			p := image.Pt(x+dx, y+dy)
			if !p.In(d.img.Rect) {
				continue
			}
			if i := inkOf(d.img.NRGBAAt(p.X, p.Y)); i > out {
				out = i
			}
		}
	}
	return out
}

var inkColors = [...]color.NRGBA{
	paper: {0xff, 0xff, 0xff, 0xff},
	black: {0, 0, 0, 0xff},
	red:   {0xff, 0, 0, 0xff},
}

var inkRunes = [...]byte{paper: '.', black: '#', red: 'r'}

func (d *Dev) refresh() error {
	d.buf.Reset()
	b := d.img.Rect
	for y := b.Min.Y; y < b.Max.Y; y += d.scale {
		for x := b.Min.X; x < b.Max.X; x += d.scale {
			i := d.block(x, y)
			if d.color {
				_, _ = d.buf.WriteString(d.palette.Block(inkColors[i]))
			} else {
				_ = d.buf.WriteByte(inkRunes[i])
			}
		}
		if d.color {
			_, _ = d.buf.WriteString("\033[0m")
		}
		_ = d.buf.WriteByte('\n')
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
