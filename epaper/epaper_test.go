// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epaper

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// fakeTransport records the bytes sent to the controller in the same shape
// as fakeController.
type fakeTransport struct {
	records []record
	err     error
}

func (f *fakeTransport) Command(op byte) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record{cmd: op})
	return nil
}

func (f *fakeTransport) Data(p []byte) error {
	if f.err != nil {
		return f.err
	}
	if len(f.records) == 0 {
		return errors.New("data without command")
	}
	cur := &f.records[len(f.records)-1]
	cur.data = append(cur.data, p...)
	return nil
}

func (f *fakeTransport) commands() []byte {
	var cmds []byte
	for _, r := range f.records {
		cmds = append(cmds, r.cmd)
	}
	return cmds
}

// data returns the bytes sent after the n-th occurrence of cmd.
func (f *fakeTransport) data(cmd byte, n int) []byte {
	for _, r := range f.records {
		if r.cmd != cmd {
			continue
		}
		if n == 0 {
			return r.data
		}
		n--
	}
	return nil
}

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
}

func newTestDev(t *testing.T, opts Opts) (*Dev, *fakeTransport, *fakeClock) {
	t.Helper()

	tr := &fakeTransport{}
	rst := &gpiotest.Pin{N: "rst"}
	busy := &gpiotest.Pin{N: "busy", L: !opts.BusyLevel}

	d, err := New(tr, rst, busy, &opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	clk := &fakeClock{}
	d.setClock(clk)

	return d, tr, clk
}

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name       string
		opts       Opts
		wantString string
		wantBounds image.Rectangle
		wantModel  color.Model
	}{
		{
			name:       "GDEW029T5D",
			opts:       GDEW029T5D,
			wantString: "epaper.Dev{GDEW029T5D, UC8151, 128x296}",
			wantBounds: image.Rect(0, 0, 128, 296),
			wantModel:  image1bit.BitModel,
		},
		{
			name: "GDEH029Z13, rotated",
			opts: func() Opts {
				opts := GDEH029Z13
				opts.Rotation = Rotate90
				return opts
			}(),
			wantString: "epaper.Dev{GDEH029Z13, UC8151, 128x296}",
			wantBounds: image.Rect(0, 0, 296, 128),
			wantModel:  ColorModel,
		},
		{
			name:       "GDEY027T91",
			opts:       GDEY027T91,
			wantString: "epaper.Dev{GDEY027T91, SSD1680, 176x264}",
			wantBounds: image.Rect(0, 0, 176, 264),
			wantModel:  image1bit.BitModel,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev, tr, _ := newTestDev(t, tc.opts)

			if diff := cmp.Diff(dev.String(), tc.wantString); diff != "" {
				t.Errorf("String() difference (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(dev.Bounds(), tc.wantBounds); diff != "" {
				t.Errorf("Bounds() difference (-got +want):\n%s", diff)
			}
			if dev.ColorModel() != tc.wantModel {
				t.Errorf("ColorModel() = %v, want %v", dev.ColorModel(), tc.wantModel)
			}
			if len(tr.records) != 0 {
				t.Errorf("New() talked to the controller: %v", tr.commands())
			}
		})
	}
}

func TestNewInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Opts
	}{
		{name: "empty", opts: Opts{}},
		{name: "no planes", opts: Opts{Geometry: Geometry{Width: 8, Height: 8}}},
		{
			name: "three planes",
			opts: Opts{
				Geometry: Geometry{Width: 8, Height: 8},
				Planes:   []Polarity{InkSet, InkSet, InkSet},
			},
		},
		{
			name: "bad plane reference",
			opts: Opts{
				Geometry:   Geometry{Width: 8, Height: 8},
				Planes:     []Polarity{InkSet},
				FullWrites: []RAMWrite{{Cmd: 0x13, Plane: 1}},
			},
		},
		{
			name: "bad data entry",
			opts: Opts{
				Family:    SSD1680,
				Geometry:  Geometry{Width: 8, Height: 8},
				Planes:    []Polarity{InkSet},
				DataEntry: 0x02,
			},
		},
		{
			name: "unknown family",
			opts: Opts{
				Family:   Family(7),
				Geometry: Geometry{Width: 8, Height: 8},
				Planes:   []Polarity{InkSet},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(&fakeTransport{}, nil, nil, &tc.opts); err == nil {
				t.Error("New() did not fail")
			}
		})
	}
}

func TestSetPixelRotation(t *testing.T) {
	for _, tc := range []struct {
		r    Rotation
		want image.Point
	}{
		{r: Rotate0, want: image.Pt(3, 5)},
		{r: Rotate90, want: image.Pt(122, 3)},
		{r: Rotate180, want: image.Pt(124, 290)},
		{r: Rotate270, want: image.Pt(5, 292)},
	} {
		t.Run(tc.r.String(), func(t *testing.T) {
			dev, _, _ := newTestDev(t, GDEH029Z13)
			dev.SetRotation(tc.r)

			dev.SetPixel(3, 5, Red)

			if got := dev.frame.pixel(tc.want.X, tc.want.Y); got != Red {
				t.Errorf("physical pixel %v = %v, want red", tc.want, got)
			}
			if got := dev.Pixel(3, 5); got != Red {
				t.Errorf("Pixel() = %v, want red", got)
			}
			if got := dev.At(3, 5); got != Red {
				t.Errorf("At() = %v, want red", got)
			}
		})
	}
}

func TestSetOutOfRange(t *testing.T) {
	dev, _, _ := newTestDev(t, GDEW029T5D)
	dev.SetRotation(Rotate90)

	before := append([]byte{}, dev.frame.planes[0].pix...)
	for _, pt := range []image.Point{{-1, 0}, {296, 0}, {0, 128}, {1000, -1000}} {
		dev.Set(pt.X, pt.Y, color.Black)
	}
	if !bytes.Equal(dev.frame.planes[0].pix, before) {
		t.Error("out of range Set() changed the buffer")
	}
}

func TestMonoAt(t *testing.T) {
	dev, _, _ := newTestDev(t, GDEW029T5D)
	dev.Set(1, 1, color.RGBA{R: 0xff, A: 0xff})

	if got := dev.At(1, 1); got != image1bit.Off {
		t.Errorf("At() = %v, want image1bit.Off", got)
	}
	if got := dev.At(0, 0); got != image1bit.On {
		t.Errorf("At() = %v, want image1bit.On", got)
	}
}

func TestUpdate(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)
	dev.SetPixel(0, 0, Black)

	if err := dev.Update(); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	wantCmds := []byte{
		ucPanelSetting, ucResolutionSetting, ucVcomDataInterval, ucPowerOn,
		ucDataStartTx1, ucDataStartTx2,
		ucDisplayRefresh,
		ucPowerOff, ucDeepSleep,
	}
	if diff := cmp.Diff(tr.commands(), wantCmds); diff != "" {
		t.Errorf("Update() commands difference (-got +want):\n%s", diff)
	}

	size := GDEW029T5D.PlaneSize()

	old := tr.data(ucDataStartTx1, 0)
	if diff := cmp.Diff(old, bytes.Repeat([]byte{0xFF}, size)); diff != "" {
		t.Errorf("old data difference (-got +want):\n%s", diff)
	}

	wantNew := bytes.Repeat([]byte{0xFF}, size)
	wantNew[0] = 0x7F
	if diff := cmp.Diff(tr.data(ucDataStartTx2, 0), wantNew); diff != "" {
		t.Errorf("new data difference (-got +want):\n%s", diff)
	}
}

func TestUpdateBicolor(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEH029Z13)
	dev.SetPixel(0, 0, Black)
	dev.SetPixel(8, 0, Red)

	if err := dev.Update(); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	black := tr.data(ucDataStartTx1, 0)
	red := tr.data(ucDataStartTx2, 0)

	if got := black[:2]; !bytes.Equal(got, []byte{0x7F, 0xFF}) {
		t.Errorf("black plane starts with % x, want 7f ff", got)
	}
	if got := red[:2]; !bytes.Equal(got, []byte{0xFF, 0x7F}) {
		t.Errorf("red plane starts with % x, want ff 7f", got)
	}
}

func TestUpdateWithoutReset(t *testing.T) {
	tr := &fakeTransport{}
	opts := GDEW029T5D
	dev, err := New(tr, nil, &gpiotest.Pin{L: gpio.High}, &opts)
	if err != nil {
		t.Fatal(err)
	}
	dev.setClock(&fakeClock{})

	if err := dev.Update(); err != nil {
		t.Fatal(err)
	}
	if bytes.IndexByte(tr.commands(), ucDeepSleep) != -1 {
		t.Error("deep sleep entered without a reset line")
	}
}

func TestUpdateWindowSequence(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Opts
		want []byte
	}{
		{
			name: "GDEW029T5D",
			opts: GDEW029T5D,
			want: []byte{
				// wake
				ucPanelSetting, ucResolutionSetting, ucVcomDataInterval, ucPowerOn,
				// partial waveform
				ucPanelSetting, ucVcomDataInterval, ucLutVcom, ucLutWW, ucLutBW, ucLutWB, ucLutBB,
				// write and refresh
				ucPartialIn, ucPartialWindow, ucDataStartTx2, ucDisplayRefresh, ucPartialOut,
				// both RAM banks
				ucPartialIn, ucPartialWindow, ucDataStartTx2, ucDisplayRefresh, ucPartialOut,
			},
		},
		{
			name: "GDEH029Z13",
			opts: GDEH029Z13,
			want: []byte{
				ucPanelSetting, ucResolutionSetting, ucVcomDataInterval, ucPowerOn,
				ucPartialIn, ucPartialWindow, ucDataStartTx1, ucDataStartTx2, ucDisplayRefresh, ucPartialOut,
			},
		},
		{
			name: "GDEY027T91",
			opts: GDEY027T91,
			want: []byte{
				ssdSWReset, ssdBorderWaveformControl, ssdTempSensorSelect,
				ssdDisplayUpdateControl2, ssdMasterActivation,
				ssdDataEntryModeSetting, ssdSetRAMXAddressStartEndPosition, ssdSetRAMYAddressStartEndPosition,
				ssdSetRAMXAddressCounter, ssdSetRAMYAddressCounter,
				ssdWriteRAMBW,
				ssdDisplayUpdateControl2, ssdMasterActivation,
				// previous image, no refresh
				ssdDataEntryModeSetting, ssdSetRAMXAddressStartEndPosition, ssdSetRAMYAddressStartEndPosition,
				ssdSetRAMXAddressCounter, ssdSetRAMYAddressCounter,
				ssdWriteRAMBW,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev, tr, clk := newTestDev(t, tc.opts)

			if err := dev.UpdateWindow(10, 5, 20, 8, false); err != nil {
				t.Fatalf("UpdateWindow() failed: %v", err)
			}
			if diff := cmp.Diff(tr.commands(), tc.want); diff != "" {
				t.Errorf("UpdateWindow() commands difference (-got +want):\n%s", diff)
			}
			if clk.slept < tc.opts.PartialDelay {
				t.Errorf("slept %s, want at least %s", clk.slept, tc.opts.PartialDelay)
			}
		})
	}
}

func TestUpdateWindowData(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)
	dev.SetPixel(10, 5, Black)

	if err := dev.UpdateWindow(10, 5, 20, 8, false); err != nil {
		t.Fatal(err)
	}

	want := bytes.Repeat([]byte{0xFF}, 3*8)
	want[0] = 0xDF
	for pass := 0; pass < 2; pass++ {
		if diff := cmp.Diff(tr.data(ucDataStartTx2, pass), want); diff != "" {
			t.Errorf("pass %d window data difference (-got +want):\n%s", pass, diff)
		}
	}
}

func TestPartialSkipsWake(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)

	for i := 0; i < 3; i++ {
		if err := dev.UpdateWindow(0, 0, 8, 8, true); err != nil {
			t.Fatal(err)
		}
	}

	count := func(cmd byte) int {
		return bytes.Count(tr.commands(), []byte{cmd})
	}
	if got := count(ucPowerOn); got != 1 {
		t.Errorf("power on sent %d times, want 1", got)
	}
	if got := count(ucLutVcom); got != 1 {
		t.Errorf("partial waveform loaded %d times, want 1", got)
	}
	if got := count(ucDisplayRefresh); got != 6 {
		t.Errorf("refresh sent %d times, want 6", got)
	}

	// A full update leaves partial mode; the next partial update wakes again.
	if err := dev.Update(); err != nil {
		t.Fatal(err)
	}
	if err := dev.UpdateWindow(0, 0, 8, 8, true); err != nil {
		t.Fatal(err)
	}
	if got := count(ucPowerOn); got != 3 {
		t.Errorf("power on sent %d times, want 3", got)
	}

	// So does a power down.
	if err := dev.PowerDown(); err != nil {
		t.Fatal(err)
	}
	if err := dev.UpdateWindow(0, 0, 8, 8, true); err != nil {
		t.Fatal(err)
	}
	if got := count(ucPowerOn); got != 4 {
		t.Errorf("power on sent %d times, want 4", got)
	}
}

func TestUpdateWindowOffPanel(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)

	for _, r := range [][4]int{
		{128, 0, 8, 8},
		{0, 296, 8, 8},
		{0, 0, 0, 8},
		{-20, -20, 10, 10},
	} {
		if err := dev.UpdateWindow(r[0], r[1], r[2], r[3], false); err != nil {
			t.Errorf("UpdateWindow(%v) failed: %v", r, err)
		}
	}
	if len(tr.records) != 0 {
		t.Errorf("off panel updates sent %v", tr.commands())
	}
}

func TestUpdateWindowRotated(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)
	dev.SetRotation(Rotate180)

	// Regions mirror to (W-x-w-1, H-y-h-1): x 119..126, y 294.
	if err := dev.UpdateWindow(0, 0, 8, 1, true); err != nil {
		t.Fatal(err)
	}

	want := []byte{112, 127, 0x01, 0x26, 0x01, 0x26, 0x01}
	if diff := cmp.Diff(tr.data(ucPartialWindow, 0), want); diff != "" {
		t.Errorf("partial window difference (-got +want):\n%s", diff)
	}
}

func TestUpdateToWindow(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)

	// Source row 0, byte column 0.
	dev.SetPixel(0, 0, Black)
	dev.SetPixel(7, 0, Black)

	if err := dev.UpdateToWindow(0, 0, 64, 100, 8, 2, false); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(tr.data(ucPartialWindow, 0), []byte{64, 71, 0, 100, 0, 101, 0x01}); diff != "" {
		t.Errorf("partial window difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(tr.data(ucDataStartTx2, 0), []byte{0x7E, 0xFF}); diff != "" {
		t.Errorf("window data difference (-got +want):\n%s", diff)
	}
}

func TestEraseDisplay(t *testing.T) {
	dev, tr, _ := newTestDev(t, HINKE029A10)
	dev.Fill(Red)

	if err := dev.EraseDisplay(Full); err != nil {
		t.Fatal(err)
	}

	size := HINKE029A10.PlaneSize()
	if diff := cmp.Diff(tr.data(ssdWriteRAMBW, 0), bytes.Repeat([]byte{0xFF}, size)); diff != "" {
		t.Errorf("black RAM difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(tr.data(ssdWriteRAMRed, 0), make([]byte, size)); diff != "" {
		t.Errorf("red RAM difference (-got +want):\n%s", diff)
	}
	if got := dev.Pixel(0, 0); got != Red {
		t.Errorf("EraseDisplay() changed the frame: Pixel() = %v", got)
	}
}

func TestErasePartialEntersPartialMode(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)

	if err := dev.EraseDisplay(Partial); err != nil {
		t.Fatal(err)
	}
	n := len(tr.records)

	if err := dev.UpdateWindow(0, 0, 8, 8, false); err != nil {
		t.Fatal(err)
	}
	if bytes.IndexByte(tr.commands()[n:], ucPowerOn) != -1 {
		t.Error("UpdateWindow() woke the controller after a partial erase")
	}
}

func TestDraw(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)
	dev.SetUpdateMode(Partial)

	src := image.NewUniform(color.Black)
	if err := dev.Draw(image.Rect(16, 8, 24, 10), src, image.Point{}); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(tr.data(ucPartialWindow, 0), []byte{16, 23, 0, 8, 0, 9, 0x01}); diff != "" {
		t.Errorf("partial window difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(tr.data(ucDataStartTx2, 0), []byte{0x00, 0x00}); diff != "" {
		t.Errorf("window data difference (-got +want):\n%s", diff)
	}

	tr.records = nil
	dev.SetUpdateMode(Full)
	if err := dev.Draw(dev.Bounds(), image.NewUniform(color.White), image.Point{}); err != nil {
		t.Fatal(err)
	}
	if bytes.IndexByte(tr.commands(), ucPartialIn) != -1 {
		t.Error("full Draw() used a partial window")
	}
}

func TestDrawRotated(t *testing.T) {
	for _, tc := range []struct {
		r        Rotation
		wantWin  []byte
		wantData []byte
	}{
		{
			r:        Rotate0,
			wantWin:  []byte{0, 7, 0, 0, 0, 0, 0x01},
			wantData: []byte{0x00},
		},
		{
			// Logical row 0 is physical column 127, rows 0..7.
			r:        Rotate90,
			wantWin:  []byte{120, 127, 0, 0, 0, 7, 0x01},
			wantData: bytes.Repeat([]byte{0xFE}, 8),
		},
		{
			r:        Rotate180,
			wantWin:  []byte{120, 127, 0x01, 0x27, 0x01, 0x27, 0x01},
			wantData: []byte{0x00},
		},
		{
			// Logical row 0 is physical column 0, rows 288..295.
			r:        Rotate270,
			wantWin:  []byte{0, 7, 0x01, 0x20, 0x01, 0x27, 0x01},
			wantData: bytes.Repeat([]byte{0x7F}, 8),
		},
	} {
		t.Run(tc.r.String(), func(t *testing.T) {
			dev, tr, _ := newTestDev(t, GDEW029T5D)
			dev.SetRotation(tc.r)
			dev.SetUpdateMode(Partial)

			if err := dev.Draw(image.Rect(0, 0, 8, 1), image.NewUniform(color.Black), image.Point{}); err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tr.data(ucPartialWindow, 0), tc.wantWin); diff != "" {
				t.Errorf("partial window difference (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(tr.data(ucDataStartTx2, 0), tc.wantData); diff != "" {
				t.Errorf("window data difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestFlipX(t *testing.T) {
	dev, tr, _ := newTestDev(t, HINKE029A10)
	dev.SetPixel(0, 0, Black)

	if got := dev.frame.pixel(127, 0); got != Black {
		t.Errorf("frame pixel (127, 0) = %v, want black", got)
	}
	if got := dev.Pixel(0, 0); got != Black {
		t.Errorf("Pixel() = %v, want black", got)
	}

	if err := dev.Update(); err != nil {
		t.Fatal(err)
	}
	want := bytes.Repeat([]byte{0xFF}, HINKE029A10.BytesPerRow())
	want[len(want)-1] = 0xFE
	if diff := cmp.Diff(tr.data(ssdWriteRAMBW, 0)[:len(want)], want); diff != "" {
		t.Errorf("first row difference (-got +want):\n%s", diff)
	}

	// The window follows the mirrored column.
	tr.records = nil
	if err := dev.UpdateWindow(0, 0, 8, 1, false); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tr.data(ssdSetRAMXAddressStartEndPosition, 0), []byte{15, 15}); diff != "" {
		t.Errorf("RAM X range difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(tr.data(ssdWriteRAMBW, 0), []byte{0xFE}); diff != "" {
		t.Errorf("window data difference (-got +want):\n%s", diff)
	}
}

func TestTransportError(t *testing.T) {
	dev, tr, _ := newTestDev(t, GDEW029T5D)
	tr.err = errors.New("bus failure")

	if err := dev.Update(); err == nil || err.Error() != "bus failure" {
		t.Errorf("Update() = %v, want bus failure", err)
	}
	if err := dev.UpdateWindow(0, 0, 8, 8, false); err == nil {
		t.Error("UpdateWindow() did not fail")
	}

	// The controller never reached partial mode.
	tr.err = nil
	if err := dev.UpdateWindow(0, 0, 8, 8, false); err != nil {
		t.Fatal(err)
	}
	if tr.commands()[0] != ucPanelSetting {
		t.Errorf("first command = %#02x, want a wake", tr.commands()[0])
	}
}
