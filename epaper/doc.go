// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package epaper drives Good Display e-paper panels built on the UC8151D and
// SSD1680 controllers.
//
// A Dev keeps a one bit per pixel frame buffer (one plane for black/white
// panels, two for black/white/red panels), maps logical coordinates through
// the display rotation and sends the buffer to the controller with full,
// partial window or paged updates.
//
// Paged rendering is meant for hosts that can not hold a complete frame. The
// buffer then holds a single band of rows and the DrawFunc passed to DrawPaged
// is called once per band; it must draw the whole frame every time, pixels
// outside the active band are discarded.
//
// Datasheets
//
// UC8151D: https://v4.cecdn.yun300.cn/100001_1909185148/UC8151D.pdf
//
// SSD1680: https://www.good-display.com/companyfile/101.html
//
// Product pages:
//
// GDEW029T5D: http://www.e-paper-display.com/products_detail/productId=397.html
//
// GDEY027T91: https://www.good-display.com/product/432.html
package epaper
