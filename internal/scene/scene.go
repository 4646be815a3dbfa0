// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scene holds the pictures drawn by the epaper command.
//
// Every function returns an epaper.DrawFunc, so the pictures work with both
// buffered and paged devices.
package scene

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/GermanBionicSystems/epd/epaper"
)

var regular = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

func face(size float64) (font.Face, error) {
	f, err := regular()
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	if size < 6 {
		size = 6
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingFull}), nil
}

// ClockRect returns the part of b refreshed by Clock: its bottom quarter.
func ClockRect(b image.Rectangle) image.Rectangle {
	return image.Rect(b.Min.X, b.Max.Y-b.Dy()/4, b.Max.X, b.Max.Y)
}

// Demo draws a framed title with a red disc above ClockRect. The picture is
// rendered once, at the size of the first destination.
func Demo(title string) (epaper.DrawFunc, error) {
	if _, err := regular(); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	var img image.Image
	return func(dst draw.Image) {
		b := dst.Bounds()
		if img == nil || img.Bounds().Size() != b.Size() {
			img = renderDemo(title, b.Size())
		}
		draw.Draw(dst, b, img, image.Point{}, draw.Src)
	}, nil
}

func renderDemo(title string, size image.Point) image.Image {
	w := float64(size.X)
	top := float64(ClockRect(image.Rectangle{Max: size}).Min.Y)

	dc := gg.NewContext(size.X, size.Y)
	dc.SetColor(epaper.White)
	dc.Clear()

	dc.SetColor(epaper.Black)
	dc.SetLineWidth(2)
	dc.DrawRoundedRectangle(2, 2, w-4, top-4, 6)
	dc.Stroke()

	r := top / 6
	if r > w/6 {
		r = w / 6
	}
	dc.SetColor(epaper.Red)
	dc.DrawCircle(8+r, top/2, r)
	dc.Fill()

	// The parse already succeeded in Demo.
	if f, err := face(top / 5); err == nil {
		dc.SetFontFace(f)
	}
	dc.SetColor(epaper.Black)
	dc.DrawStringAnchored(title, (w+2*r+8)/2, top/2, 0.5, 0.5)

	dc.SetFontFace(basicfont.Face7x13)
	dc.DrawStringAnchored(fmt.Sprintf("%dx%d", size.X, size.Y), w/2, top-10, 0.5, 0)
	return dc.Image()
}

// Clock draws t formatted with layout inside ClockRect, with the date in the
// top left corner. Nothing outside ClockRect is touched.
func Clock(t time.Time, layout string) (epaper.DrawFunc, error) {
	if _, err := regular(); err != nil {
		return nil, err
	}
	text := t.Format(layout)
	date := t.Format("Mon 02 Jan")
	return func(dst draw.Image) {
		r := ClockRect(dst.Bounds())
		if r.Empty() {
			return
		}
		tile := image.NewRGBA(r)
		draw.Draw(tile, r, image.NewUniform(epaper.White), image.Point{}, draw.Src)

		small := font.Drawer{
			Dst:  tile,
			Src:  image.NewUniform(epaper.Red),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(r.Min.X+2, r.Min.Y+basicfont.Face7x13.Ascent),
		}
		small.DrawString(date)

		size := float64(r.Dy()) * 0.7
		if limit := float64(r.Dx()) / (0.6 * float64(len(text)+1)); size > limit {
			size = limit
		}
		f, err := face(size)
		if err != nil {
			return
		}
		defer f.Close()
		big := font.Drawer{Dst: tile, Src: image.NewUniform(epaper.Black), Face: f}
		m := f.Metrics()
		x := r.Min.X + (r.Dx()-big.MeasureString(text).Round())/2
		y := r.Min.Y + (r.Dy()+m.Ascent.Round()-m.Descent.Round())/2
		big.Dot = fixed.P(x, y)
		big.DrawString(text)

		draw.Draw(dst, r, tile, r.Min, draw.Src)
	}, nil
}
