// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import "image/draw"

// DrawFunc draws the complete logical image into dst. During a paged render
// only the rows of the current page are kept, so the function is called once
// per page and must draw the same image every time.
type DrawFunc func(dst draw.Image)

// DrawPaged renders fn with a full refresh, one page at a time when the frame
// is paged. A nil fn, or a call from within fn, is ignored.
func (d *Dev) DrawPaged(fn DrawFunc) error {
	if fn == nil || d.rendering() {
		return nil
	}

	eh := errorHandler{d: d}
	d.fullUpdate(&eh, "DrawPaged", d.renderPages(fn))
	return eh.err
}

// DrawPagedToWindow renders fn and refreshes the logical rectangle at (x, y)
// sized w×h with a partial update. Pages that do not intersect the window
// are skipped. The first call outside partial mode erases the panel.
func (d *Dev) DrawPagedToWindow(fn DrawFunc, x, y, w, h int) error {
	if fn == nil || d.rendering() {
		return nil
	}

	win, ok := d.Window(x, y, w, h)
	if !ok {
		return nil
	}
	return d.drawPagedWindow(fn, win)
}

func (d *Dev) drawPagedWindow(fn DrawFunc, win Window) error {
	eh := errorHandler{d: d}
	if !d.partial {
		// SSD1680 RAM holds the last full image, which the partial
		// waveform compares against.
		if d.opts.Family == SSD1680 {
			d.erase(&eh, Full)
		}
		d.erase(&eh, Partial)
	}
	d.partialUpdate(&eh, "DrawPagedToWindow", win, d.renderPages(fn))
	return eh.err
}

// renderPages returns a writeFunc calling fn for each page that intersects
// the window and streaming the page rows within it. An unpaged frame is a
// single page drawn once per call.
func (d *Dev) renderPages(fn DrawFunc) writeFunc {
	drawn := false
	single := d.frame.geo.Pages() == 1

	return func(ctrl controller, plane int, win Window) {
		if plane < 0 {
			sendRows(ctrl, plane, win, nil)
			return
		}

		defer func() {
			d.frame.page = -1
		}()

		for p := 0; p < d.frame.geo.Pages(); p++ {
			start, end := d.frame.geo.page(p)
			band := win.band(start, end)
			if band.Empty() {
				continue
			}

			d.frame.page = p
			if !single || !drawn {
				d.frame.clear(White)
				fn(d)
				drawn = true
			}
			sendRows(ctrl, plane, band, d.frameRows)
		}
	}
}
