// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package epd is a container for the e-paper frame-buffer engine and its
// tools.
//
// The driver lives in package epaper. termpreview and rpiospi are optional
// output and transport backends; cmd/epaper puts everything together.
package epd
