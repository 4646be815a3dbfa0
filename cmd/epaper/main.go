// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// epaper draws on a Good Display or Waveshare e-paper panel.
//
// Usage:
//
//	epaper [flags] [demo|clock|erase|preview|config]
//
// demo draws a picture with a full refresh. clock does the same, then
// redraws the time with a partial refresh on a cron schedule until
// interrupted. erase whitens the panel. preview renders the demo on the
// terminal without touching hardware. config writes the effective
// configuration to the -config path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/epd/epaper"
	"github.com/GermanBionicSystems/epd/internal/config"
	"github.com/GermanBionicSystems/epd/internal/logkv"
	"github.com/GermanBionicSystems/epd/internal/scene"
	"github.com/GermanBionicSystems/epd/rpiospi"
	"github.com/GermanBionicSystems/epd/termpreview"
)

type flagConfig struct {
	configPath string
	model      string
	rotation   int
	paged      bool
	backend    string
	preview    bool
	verbose    bool
	set        map[string]bool
}

func parseFlags(args []string) (flagConfig, []string, error) {
	var f flagConfig
	fs := flag.NewFlagSet("epaper", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "/etc/epaper.yaml", "Path to config file")
	fs.StringVar(&f.model, "model", "", "Panel model, one of "+strings.Join(epaper.Models(), ", "))
	fs.IntVar(&f.rotation, "rotation", 0, "Rotation in degrees: 0, 90, 180 or 270")
	fs.BoolVar(&f.paged, "paged", false, "Keep a single page of the frame in memory")
	fs.StringVar(&f.backend, "backend", "", "Hardware access: periph or rpio")
	fs.BoolVar(&f.preview, "preview", false, "Render on the terminal instead of the panel")
	fs.BoolVar(&f.verbose, "v", false, "Log busy waits and refresh timings")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	f.set = map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, fs.Args(), nil
}

// apply overrides the configuration with the flags given on the command line.
func (f *flagConfig) apply(cfg *config.Config) {
	if f.set["model"] {
		cfg.Model = f.model
	}
	if f.set["rotation"] {
		cfg.Rotation = f.rotation
	}
	if f.set["paged"] {
		cfg.Paged = f.paged
	}
	if f.set["backend"] {
		cfg.Backend = f.backend
	}
	if f.set["preview"] {
		cfg.Preview = f.preview
	}
	if f.set["v"] {
		cfg.Diagnostics = f.verbose
	}
}

// nopTransport drops everything. It backs the terminal preview.
type nopTransport struct{}

func (nopTransport) Command(op byte) error { return nil }
func (nopTransport) Data(p []byte) error   { return nil }

// app is one run of the command.
type app struct {
	cfg     *config.Config
	dev     *epaper.Dev
	preview *termpreview.Dev
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logkv.Error("close failed", err)
		}
	}
}

func (a *app) open() error {
	opts, err := a.cfg.Opts()
	if err != nil {
		return err
	}
	if a.cfg.Diagnostics {
		opts.Logger = logkv.Std(logkv.LevelDebug)
	}

	if a.cfg.Preview {
		// The preview reads the frame back, so it must be fully buffered,
		// and there is no busy line to wait for.
		opts.Paged = false
		opts.Timing = epaper.Timing{}
		opts.PartialDelay = 0
		if a.dev, err = epaper.New(nopTransport{}, nil, nil, opts); err != nil {
			return err
		}
		b := a.dev.Bounds()
		a.preview = termpreview.New(&termpreview.Opts{Width: b.Dx(), Height: b.Dy()})
		a.closers = append(a.closers, a.preview.Halt)
		return nil
	}

	switch a.cfg.Backend {
	case config.BackendRPIO:
		err = a.openRPIO(opts)
	default:
		err = a.openPeriph(opts)
	}
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.dev.Halt)
	return nil
}

func (a *app) openPeriph(opts *epaper.Opts) error {
	if _, err := host.Init(); err != nil {
		return err
	}
	port, err := spireg.Open(a.cfg.SPI)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, port.Close)

	pins := map[string]gpio.PinIO{}
	for _, name := range []string{a.cfg.Pins.DC, a.cfg.Pins.CS, a.cfg.Pins.RST, a.cfg.Pins.Busy} {
		p := gpioreg.ByName(name)
		if p == nil {
			return fmt.Errorf("gpio %q not found", name)
		}
		pins[name] = p
	}
	t, err := epaper.NewSPI(port, pins[a.cfg.Pins.DC], pins[a.cfg.Pins.CS])
	if err != nil {
		return err
	}
	a.dev, err = epaper.New(t, pins[a.cfg.Pins.RST], pins[a.cfg.Pins.Busy], opts)
	return err
}

func (a *app) openRPIO(opts *epaper.Opts) error {
	var o rpiospi.Opts
	for _, p := range []struct {
		name string
		n    *int
	}{{a.cfg.Pins.DC, &o.DC}, {a.cfg.Pins.CS, &o.CS}, {a.cfg.Pins.RST, &o.RST}, {a.cfg.Pins.Busy, &o.Busy}} {
		n, err := config.BCM(p.name)
		if err != nil {
			return err
		}
		*p.n = n
	}
	t, rst, busy, err := rpiospi.Open(&o)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, t.Close)
	a.dev, err = epaper.New(t, rst, busy, opts)
	return err
}

// show copies the frame to the terminal preview, if any.
func (a *app) show() error {
	if a.preview == nil {
		return nil
	}
	return a.preview.Draw(a.dev.Bounds(), a.dev, image.Point{})
}

func (a *app) demo() error {
	d, err := scene.Demo(a.cfg.Title)
	if err != nil {
		return err
	}
	c, err := scene.Clock(time.Now(), a.cfg.Clock.Layout)
	if err != nil {
		return err
	}
	start := time.Now()
	err = a.dev.DrawPaged(func(dst draw.Image) {
		d(dst)
		c(dst)
	})
	if err != nil {
		return err
	}
	logkv.Info("frame drawn", "dev", a.dev, "paged", a.cfg.Paged, "took", time.Since(start).Round(time.Millisecond))
	return a.show()
}

// tick redraws the clock area with a partial refresh.
func (a *app) tick(now time.Time) error {
	fn, err := scene.Clock(now, a.cfg.Clock.Layout)
	if err != nil {
		return err
	}
	r := scene.ClockRect(a.dev.Bounds())
	if a.cfg.Paged {
		err = a.dev.DrawPagedToWindow(fn, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	} else {
		fn(a.dev)
		err = a.dev.UpdateWindow(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), true)
	}
	if err != nil {
		return err
	}
	return a.show()
}

func (a *app) clock(ctx context.Context) error {
	if err := a.demo(); err != nil {
		return err
	}

	logger := cron.PrintfLogger(logkv.Std(logkv.LevelDebug))
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
		cron.WithLogger(logger),
	)
	if _, err := c.AddFunc(a.cfg.Clock.Schedule, func() {
		if err := a.tick(time.Now()); err != nil {
			logkv.Error("clock refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("clock schedule %q: %w", a.cfg.Clock.Schedule, err)
	}
	logkv.Info("clock started", "schedule", a.cfg.Clock.Schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return a.dev.PowerDown()
}

func (a *app) erase() error {
	if err := a.dev.EraseDisplay(epaper.Full); err != nil {
		return err
	}
	return a.dev.PowerDown()
}

func mainImpl(ctx context.Context, args []string, stdout io.Writer) error {
	f, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	cmd := "demo"
	if len(rest) > 1 {
		return errors.New("too many arguments")
	}
	if len(rest) == 1 {
		cmd = rest[0]
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cfg)
	if cmd == "preview" {
		cfg.Preview = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Diagnostics {
		logkv.SetLevel(logkv.LevelDebug)
	}

	switch cmd {
	case "config":
		if err := config.Save(f.configPath, cfg); err != nil {
			return err
		}
		_, err := fmt.Fprintf(stdout, "wrote %s\n", f.configPath)
		return err
	case "demo", "clock", "erase", "preview":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	a := &app{cfg: cfg}
	defer a.close()
	if err := a.open(); err != nil {
		return err
	}
	logkv.Info("panel ready", "dev", a.dev, "rotation", a.dev.Rotation(), "backend", cfg.Backend, "preview", cfg.Preview)

	switch cmd {
	case "clock":
		return a.clock(ctx)
	case "erase":
		return a.erase()
	default:
		return a.demo()
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logkv.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := mainImpl(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			logkv.Error("epaper failed", err)
		}
		os.Exit(1)
	}
}
