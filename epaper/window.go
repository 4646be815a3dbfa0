// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"image"
)

// Window is an area of controller RAM. Controllers address RAM in byte
// columns, so the horizontal extent is rounded outward to whole bytes.
type Window struct {
	// Rect is the requested area in physical pixels, clipped to the panel.
	Rect image.Rectangle

	// Mem is the area to transfer; horizontally in bytes, vertically in
	// pixel rows.
	Mem image.Rectangle
}

// AlignedX returns the first pixel column of the window, a multiple of 8.
func (w Window) AlignedX() int {
	return w.Mem.Min.X * 8
}

// AlignedXEnd returns the last pixel column of the window (inclusive); its
// low three bits are always set.
func (w Window) AlignedXEnd() int {
	return w.Mem.Max.X*8 - 1
}

// BytesPerRow returns the number of bytes the controller expects per row
// once the window is programmed.
func (w Window) BytesPerRow() int {
	return w.Mem.Dx()
}

// Empty reports whether the window covers nothing.
func (w Window) Empty() bool {
	return w.Mem.Empty()
}

// ComputeWindow clips the physical rectangle at (x, y) sized w×h to the panel
// and rounds it outward to byte columns. ok is false when nothing of the
// rectangle lies on the panel.
func (g Geometry) ComputeWindow(x, y, w, h int) (win Window, ok bool) {
	if w <= 0 || h <= 0 {
		return Window{}, false
	}

	r := image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, g.Width, g.Height))
	if r.Empty() {
		return Window{}, false
	}

	xe := r.Max.X - 1

	win.Rect = r
	win.Mem = image.Rect(r.Min.X/8, r.Min.Y, ((xe|7)+1)/8, r.Max.Y)

	return win, true
}

// fullWindow returns the window covering the whole panel.
func (g Geometry) fullWindow() Window {
	win, _ := g.ComputeWindow(0, 0, g.Width, g.Height)
	return win
}

// band restricts win to the physical rows [start, end).
func (w Window) band(start, end int) Window {
	if start < w.Mem.Min.Y {
		start = w.Mem.Min.Y
	}
	if end > w.Mem.Max.Y {
		end = w.Mem.Max.Y
	}
	if end < start {
		end = start
	}

	b := w
	b.Mem.Min.Y, b.Mem.Max.Y = start, end
	b.Rect.Min.Y, b.Rect.Max.Y = start, end
	return b
}
