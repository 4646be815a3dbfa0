// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

// blankByte is eight white pixels for RAM that holds the previous image.
const blankByte byte = 0xFF

// rowSource fills row with the wire bytes of a plane at physical row y,
// starting at byte column col.
type rowSource func(plane, y, col int, row []byte)

// writeFunc streams a plane into the RAM window just opened by a write
// command. plane is -1 for a blank transfer.
type writeFunc func(ctrl controller, plane int, win Window)

func (d *Dev) frameRows(plane, y, col int, row []byte) {
	for i := range row {
		row[i] = d.frame.wire(plane, y, col+i)
	}
}

func (d *Dev) whiteRows(plane, y, col int, row []byte) {
	b := d.frame.wireWhite(plane)
	for i := range row {
		row[i] = b
	}
}

// sendRows transfers the rows of win, one data transaction per row.
func sendRows(ctrl controller, plane int, win Window, src rowSource) {
	row := make([]byte, win.BytesPerRow())
	for y := win.Mem.Min.Y; y < win.Mem.Max.Y; y++ {
		if plane < 0 {
			for i := range row {
				row[i] = blankByte
			}
		} else {
			src(plane, y, win.Mem.Min.X, row)
		}
		ctrl.sendData(row)
	}
}

func (d *Dev) streamFrom(src rowSource) writeFunc {
	return func(ctrl controller, plane int, win Window) {
		sendRows(ctrl, plane, win, src)
	}
}

// fullUpdate wakes the controller, writes every plane over the whole panel,
// refreshes and puts the controller back to sleep.
func (d *Dev) fullUpdate(eh *errorHandler, label string, write writeFunc) {
	d.partial = false
	d.wake(eh)

	win := d.opts.fullWindow()
	for _, w := range d.opts.FullWrites {
		d.proto.fullArea(eh)
		eh.sendCommand(w.Cmd)
		write(eh, w.Plane, win)
	}

	d.proto.refresh(eh, Full, label)
	d.sleep(eh)
}

// partialUpdate writes win and refreshes it. Depending on the panel the
// window is written a second time so both controller RAM banks agree.
func (d *Dev) partialUpdate(eh *errorHandler, label string, win Window, write writeFunc) {
	d.enterPartial(eh)

	passes := 1
	if d.opts.Mirror != NoMirror {
		passes = 2
	}

	for pass := 0; pass < passes; pass++ {
		d.proto.beginWindow(eh, win)
		for _, w := range d.opts.PartialWrites {
			eh.sendCommand(w.Cmd)
			write(eh, w.Plane, win)
		}

		if pass == 0 || d.opts.Mirror == MirrorRefresh {
			d.proto.refresh(eh, Partial, label)
		}
		d.proto.endWindow(eh)

		if pass == 0 && d.opts.Mirror == MirrorWrite {
			eh.delay(d.opts.PartialDelay)
		}
	}

	eh.delay(d.opts.PartialDelay)
}

// Update writes the whole frame to the panel with a full refresh and puts
// the controller to sleep. With a paged frame, rows not held in memory are
// sent as white.
func (d *Dev) Update() error {
	if d.rendering() {
		return nil
	}

	eh := errorHandler{d: d}
	d.fullUpdate(&eh, "Update", d.streamFrom(d.frameRows))
	return eh.err
}

// UpdateWindow refreshes the rectangle at (x, y) sized w×h with a partial
// update. When rotated is set the rectangle is in logical coordinates,
// otherwise in physical ones. Rectangles off the panel are ignored.
func (d *Dev) UpdateWindow(x, y, w, h int, rotated bool) error {
	if d.rendering() {
		return nil
	}

	if rotated {
		x, y, w, h = d.opts.MapRegion(d.rotation, x, y, w, h)
	}
	win, ok := d.opts.ComputeWindow(d.toFrame(x, y, w, h))
	if !ok {
		return nil
	}

	eh := errorHandler{d: d}
	d.partialUpdate(&eh, "UpdateWindow", win, d.streamFrom(d.frameRows))
	return eh.err
}

// UpdateToWindow copies the w×h frame area at (xs, ys) to the panel at
// (xd, yd) with a partial update. The destination is clipped to the panel;
// the source start must lie on it.
func (d *Dev) UpdateToWindow(xs, ys, xd, yd, w, h int, rotated bool) error {
	if d.rendering() {
		return nil
	}

	if rotated {
		xs, ys, _, _ = d.opts.MapRegion(d.rotation, xs, ys, w, h)
		xd, yd, w, h = d.opts.MapRegion(d.rotation, xd, yd, w, h)
	}
	if xs < 0 || ys < 0 || xs >= d.opts.Width || ys >= d.opts.Height {
		return nil
	}
	if xd < 0 || yd < 0 {
		return nil
	}
	xs, ys, _, _ = d.toFrame(xs, ys, w, h)
	win, ok := d.opts.ComputeWindow(d.toFrame(xd, yd, w, h))
	if !ok {
		return nil
	}

	// Destination rows and byte columns map to the source by a fixed offset.
	// A flipped source may start left of the frame.
	srcCol := xs / 8
	if xs < 0 {
		srcCol = (xs - 7) / 8
	}
	dy := ys - win.Mem.Min.Y
	dx := srcCol - win.Mem.Min.X
	src := func(plane, y, col int, row []byte) {
		d.frameRows(plane, y+dy, col+dx, row)
	}

	eh := errorHandler{d: d}
	d.partialUpdate(&eh, "UpdateToWindow", win, d.streamFrom(src))
	return eh.err
}

// EraseDisplay clears the panel to white without touching the frame. A
// partial erase leaves the controller ready for partial updates.
func (d *Dev) EraseDisplay(mode PartialUpdate) error {
	if d.rendering() {
		return nil
	}

	eh := errorHandler{d: d}
	d.erase(&eh, mode)
	return eh.err
}

func (d *Dev) erase(eh *errorHandler, mode PartialUpdate) {
	if mode == Partial {
		d.partialUpdate(eh, "EraseDisplay", d.opts.fullWindow(), d.streamFrom(d.whiteRows))
		return
	}
	d.fullUpdate(eh, "EraseDisplay", d.streamFrom(d.whiteRows))
}

// PowerDown turns the panel off and, when a reset line is wired, enters deep
// sleep. The displayed image is retained; the next update wakes the
// controller.
func (d *Dev) PowerDown() error {
	if d.rendering() {
		return nil
	}

	eh := errorHandler{d: d}
	d.partial = false
	d.proto.powerDown(&eh, d.rst != nil)
	return eh.err
}
