// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logkv is the leveled key=value logger of the epaper command.
//
// Lines look like:
//
//	2022-01-02T03:04:05.000000006Z [INFO] panel ready model=GDEW029T5D
package logkv

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelError:
		return 2
	default:
		return 1
	}
}

var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	minLevel           = LevelInfo
	now                = time.Now
)

// SetLevel sets the minimum level printed.
func SetLevel(l Level) {
	mu.Lock()
	minLevel = l
	mu.Unlock()
}

// SetOutput redirects the log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

// Error logs msg with err as the first pair.
func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, append([]any{"err", err}, kv...)...)
}

// Std returns a *log.Logger whose lines are logged at level l, suitable for
// epaper.Opts.Logger.
func Std(l Level) *log.Logger {
	return log.New(writerFunc(func(p []byte) (int, error) {
		logWithLevel(l, strings.TrimRight(string(p), "\n"))
		return len(p), nil
	}), "", 0)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

func logWithLevel(level Level, msg string, kv ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level.rank() < minLevel.rank() {
		return
	}
	var b strings.Builder
	b.WriteString(now().UTC().Format(time.RFC3339Nano))
	b.WriteString(" [")
	b.WriteString(string(level))
	b.WriteString("] ")
	b.WriteString(msg)
	formatKVs(&b, kv)
	b.WriteByte('\n')
	_, _ = io.WriteString(out, b.String())
}

// formatKVs appends the pairs in kv. Non string keys and a trailing odd value
// are dropped.
func formatKVs(b *strings.Builder, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fmt.Fprintf(b, " %s=%v", key, kv[i+1])
	}
}
