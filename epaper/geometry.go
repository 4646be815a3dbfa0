// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"fmt"
	"image"
)

// Geometry describes the physical pixel grid of a panel.
type Geometry struct {
	Width  int
	Height int
	// PageHeight is the number of rows held in memory per page when paging.
	// Zero means the whole frame fits in one page.
	PageHeight int
}

// BytesPerRow returns the number of bytes in one row of a plane.
func (g Geometry) BytesPerRow() int {
	return (g.Width + 7) / 8
}

// PlaneSize returns the number of bytes in a full frame plane.
func (g Geometry) PlaneSize() int {
	return g.BytesPerRow() * g.Height
}

// pageRows returns the effective page height.
func (g Geometry) pageRows() int {
	if g.PageHeight <= 0 || g.PageHeight > g.Height {
		return g.Height
	}
	return g.PageHeight
}

// Pages returns the number of row bands needed to cover the frame.
func (g Geometry) Pages() int {
	rows := g.pageRows()
	if rows == 0 {
		return 0
	}
	return (g.Height + rows - 1) / rows
}

// page returns the physical rows covered by page p, clipped to the panel.
func (g Geometry) page(p int) (start, end int) {
	rows := g.pageRows()
	start = p * rows
	end = start + rows
	if end > g.Height {
		end = g.Height
	}
	return start, end
}

// Rotation is the orientation of logical drawing coordinates relative to the
// physical panel.
type Rotation uint8

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

func (r Rotation) String() string {
	switch r {
	case Rotate0:
		return "0"
	case Rotate90:
		return "90"
	case Rotate180:
		return "180"
	case Rotate270:
		return "270"
	}
	return fmt.Sprintf("Rotation(%d)", uint8(r))
}

// Set sets the Rotation to a value represented by the string s. Set implements the flag.Value interface.
func (r *Rotation) Set(s string) error {
	switch s {
	case "0":
		*r = Rotate0
	case "90":
		*r = Rotate90
	case "180":
		*r = Rotate180
	case "270":
		*r = Rotate270
	default:
		return fmt.Errorf("unknown rotation %q: expected 0, 90, 180 or 270", s)
	}
	return nil
}

// swapsAxes reports whether the rotation exchanges the X and Y axes.
func (r Rotation) swapsAxes() bool {
	return r == Rotate90 || r == Rotate270
}

// LogicalSize returns the drawing area size for the rotation.
func (g Geometry) LogicalSize(r Rotation) image.Point {
	if r.swapsAxes() {
		return image.Pt(g.Height, g.Width)
	}
	return image.Pt(g.Width, g.Height)
}

// MapPixel converts a logical pixel position into a physical one. ok is false
// when the position lies outside the logical drawing area.
func (g Geometry) MapPixel(r Rotation, x, y int) (px, py int, ok bool) {
	if !image.Pt(x, y).In(image.Rectangle{Max: g.LogicalSize(r)}) {
		return 0, 0, false
	}
	px, py = g.mapPoint(r, x, y)
	return px, py, true
}

func (g Geometry) mapPoint(r Rotation, x, y int) (int, int) {
	switch r {
	case Rotate90:
		x, y = y, x
		x = g.Width - x - 1
	case Rotate180:
		x = g.Width - x - 1
		y = g.Height - y - 1
	case Rotate270:
		x, y = y, x
		y = g.Height - y - 1
	}
	return x, y
}

// pixelRegion returns the physical rectangle holding the pixels that
// MapPixel assigns to the logical rectangle at (x, y) sized w×h. Unlike
// MapRegion it has no offset under rotation.
func (g Geometry) pixelRegion(r Rotation, x, y, w, h int) (int, int, int, int) {
	x0, y0 := g.mapPoint(r, x, y)
	x1, y1 := g.mapPoint(r, x+w-1, y+h-1)
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return x0, y0, x1 - x0 + 1, y1 - y0 + 1
}

// MapRegion converts a logical rectangle at (x, y) sized w×h into physical
// coordinates. The result is not clipped; ComputeWindow drops what lies
// outside the panel.
func (g Geometry) MapRegion(r Rotation, x, y, w, h int) (int, int, int, int) {
	switch r {
	case Rotate90:
		x, y = y, x
		w, h = h, w
		x = g.Width - x - w - 1
	case Rotate180:
		x = g.Width - x - w - 1
		y = g.Height - y - h - 1
	case Rotate270:
		x, y = y, x
		w, h = h, w
		y = g.Height - y - h - 1
	}
	return x, y, w, h
}

// UnmapRegion is the inverse of MapRegion.
func (g Geometry) UnmapRegion(r Rotation, x, y, w, h int) (int, int, int, int) {
	switch r {
	case Rotate90:
		return y, g.Width - x - w - 1, h, w
	case Rotate180:
		return g.Width - x - w - 1, g.Height - y - h - 1, w, h
	case Rotate270:
		return g.Height - y - h - 1, x, h, w
	}
	return x, y, w, h
}
