// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command audiothreadsim stands up a Thread against synthetic devices and
// streams and drives it through the full command set, the way
// client/main.go and server/main.go were runnable entry points over the
// teacher's library code rather than libraries in their own right.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/audiothread/thread"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

type simConfig struct {
	OutDevices     int    `json:"outdevices"`
	InDevices      int    `json:"indevices"`
	StreamsPerDev  int    `json:"streamsperdev"`
	SampleRate     int    `json:"samplerate"`
	Channels       int    `json:"channels"`
	BufferFrames   int    `json:"bufferframes"`
	MinBufferLevel int    `json:"minbufferlevel"`
	CBThreshold    int    `json:"cbthreshold"`
	PeriodMS       int    `json:"periodms"`
	Listen         string `json:"listen"`
	Log            string `json:"log"`
	SnmpLog        string `json:"snmplog"`
	SnmpPeriod     int    `json:"snmpperiod"`
	Quiet          bool   `json:"quiet"`
	RunSeconds     int    `json:"runseconds"`
}

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "audiothreadsim"
	app.Usage = "drive the audio I/O scheduler core against synthetic devices"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "outdevices", Value: 1, Usage: "number of simulated output devices to open"},
		cli.IntFlag{Name: "indevices", Value: 1, Usage: "number of simulated input devices to open"},
		cli.IntFlag{Name: "streamsperdev", Value: 1, Usage: "streams attached to each device"},
		cli.IntFlag{Name: "samplerate", Value: 48000, Usage: "simulated PCM frame rate"},
		cli.IntFlag{Name: "channels", Value: 2, Usage: "simulated PCM channel count"},
		cli.IntFlag{Name: "bufferframes", Value: 4096, Usage: "simulated hardware buffer size in frames"},
		cli.IntFlag{Name: "minbufferlevel", Value: 1024, Usage: "minimum buffer level pre-filled on device add"},
		cli.IntFlag{Name: "cbthreshold", Value: 480, Usage: "per-stream callback threshold in frames"},
		cli.IntFlag{Name: "periodms", Value: 10, Usage: "simulated hardware callback period, in milliseconds"},
		cli.StringFlag{Name: "listen,l", Value: ":29910", Usage: "control-plane listen address (smux over TCP)"},
		cli.StringFlag{Name: "log", Value: "", Usage: "specify a log file to output, default goes to stderr"},
		cli.StringFlag{Name: "snmplog", Value: "", Usage: "collect debug-sampler counters to file, aware of timeformat in golang, like: ./debug-20060102.log"},
		cli.IntFlag{Name: "snmpperiod", Value: 5, Usage: "debug-sampler collection period, in seconds"},
		cli.BoolFlag{Name: "quiet", Usage: "suppress attach/detach/drain logging"},
		cli.IntFlag{Name: "runseconds", Value: 0, Usage: "exit automatically after N seconds, 0 to run until signaled"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json file, which will override command line arguments"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	cfg := simConfig{
		OutDevices:     c.Int("outdevices"),
		InDevices:      c.Int("indevices"),
		StreamsPerDev:  c.Int("streamsperdev"),
		SampleRate:     c.Int("samplerate"),
		Channels:       c.Int("channels"),
		BufferFrames:   c.Int("bufferframes"),
		MinBufferLevel: c.Int("minbufferlevel"),
		CBThreshold:    c.Int("cbthreshold"),
		PeriodMS:       c.Int("periodms"),
		Listen:         c.String("listen"),
		Log:            c.String("log"),
		SnmpLog:        c.String("snmplog"),
		SnmpPeriod:     c.Int("snmpperiod"),
		Quiet:          c.Bool("quiet"),
		RunSeconds:     c.Int("runseconds"),
	}

	if path := c.String("c"); path != "" {
		if err := parseJSONConfig(&cfg, path); err != nil {
			return err
		}
	}

	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if cfg.CBThreshold > cfg.BufferFrames {
		color.Red("WARNING: cbthreshold (%d) exceeds bufferframes (%d); streams will never fetch fast enough", cfg.CBThreshold, cfg.BufferFrames)
	}

	log.Println("version:", VERSION)
	log.Println("outdevices:", cfg.OutDevices, "indevices:", cfg.InDevices, "streamsperdev:", cfg.StreamsPerDev)
	log.Println("samplerate:", cfg.SampleRate, "channels:", cfg.Channels)
	log.Println("bufferframes:", cfg.BufferFrames, "minbufferlevel:", cfg.MinBufferLevel, "cbthreshold:", cfg.CBThreshold)
	log.Println("control listen:", cfg.Listen)

	logln := func(v ...any) {
		if !cfg.Quiet {
			log.Println(v...)
		}
	}

	monitor := &busyloopLogger{}
	devIO := &devIOSim{period: time.Duration(cfg.PeriodMS) * time.Millisecond}
	th, err := thread.New(devIO, monitor, log.Default())
	if err != nil {
		return err
	}
	th.Start()
	defer th.Destroy()

	format := thread.Format{RateHz: cfg.SampleRate, Channels: cfg.Channels, Layout: "interleaved"}

	streamID := 1
	for i := 0; i < cfg.OutDevices; i++ {
		dev := newDeviceSim(i+1, thread.Output, format, cfg.BufferFrames, cfg.MinBufferLevel, cfg.CBThreshold)
		if err := th.AddOpenDevice(dev); err != nil {
			return fmt.Errorf("ADD_OPEN_DEV(out#%d): %w", dev.Index(), err)
		}
		logln("opened output device", dev.Index())
		for j := 0; j < cfg.StreamsPerDev; j++ {
			s := newStreamSim(streamID, thread.Output, format, cfg.BufferFrames, cfg.CBThreshold, cfg.BufferFrames/2)
			if err := th.AddStream(s, []int{dev.Index()}); err != nil {
				return fmt.Errorf("ADD_STREAM(%d -> out#%d): %w", s.ID(), dev.Index(), err)
			}
			logln("attached output stream", s.ID(), "to device", dev.Index())
			streamID++
		}
	}
	for i := 0; i < cfg.InDevices; i++ {
		dev := newDeviceSim(i+1, thread.Input, format, cfg.BufferFrames, cfg.MinBufferLevel, cfg.CBThreshold)
		if err := th.AddOpenDevice(dev); err != nil {
			return fmt.Errorf("ADD_OPEN_DEV(in#%d): %w", dev.Index(), err)
		}
		logln("opened input device", dev.Index())
		for j := 0; j < cfg.StreamsPerDev; j++ {
			s := newStreamSim(streamID, thread.Input, format, cfg.BufferFrames, cfg.CBThreshold, 0)
			if err := th.AddStream(s, []int{dev.Index()}); err != nil {
				return fmt.Errorf("ADD_STREAM(%d -> in#%d): %w", s.ID(), dev.Index(), err)
			}
			logln("attached input stream", s.ID(), "to device", dev.Index())
			streamID++
		}
	}

	// Identity CONFIG_GLOBAL_REMIX round-trip, mirroring the spec's §8
	// boundary test: install a non-identity converter, then hand back the
	// identity (nil) and confirm the displaced handle comes back.
	old, err := th.ConfigureGlobalRemix(&remixSim{})
	if err != nil {
		return err
	}
	logln("installed remix converter, previous was nil:", old == nil)
	displaced, err := th.ConfigureGlobalRemix(nil)
	if err != nil {
		return err
	}
	logln("restored identity remix, displaced converter returned:", displaced != nil)
	if displaced != nil {
		displaced.Close()
	}

	listenSignals(th, logln)

	stopCSV := startDebugSampler(th, cfg.SnmpLog, cfg.SnmpPeriod)
	defer stopCSV()

	stopControl, err := serveControl(th, cfg.Listen, logln)
	if err != nil {
		return err
	}
	defer stopControl()

	if cfg.RunSeconds > 0 {
		time.Sleep(time.Duration(cfg.RunSeconds) * time.Second)
		return nil
	}
	select {}
}

// busyloopLogger implements thread.Monitor by logging, standing in for a
// real-time monitoring subsystem (§6 "Realtime monitor callback").
type busyloopLogger struct{ count int }

func (m *busyloopLogger) Busyloop() {
	m.count++
	log.Println("busyloop detected, total detections so far:", m.count)
}
