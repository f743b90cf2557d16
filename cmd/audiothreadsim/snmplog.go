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

package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xtaci/audiothread/thread"
)

// startDebugSampler periodically issues DUMP_THREAD_INFO and appends a CSV
// row of aggregate counters, the same split-dirname/format-filename-by-time
// shape as std/snmp.go's SnmpLogger, but sampling this core's debug snapshot
// (§4.7) instead of kcp.DefaultSnmp. Returns a stop func; a no-op if path or
// interval is unset.
func startDebugSampler(th *thread.Thread, path string, intervalSeconds int) func() {
	if path == "" || intervalSeconds == 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
		defer ticker.Stop()
		snap := &thread.ThreadSnapshot{}
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := th.DumpThreadInfo(snap); err != nil {
					log.Println("debug sampler: DUMP_THREAD_INFO:", err)
					continue
				}
				if err := appendDebugRow(path, snap); err != nil {
					log.Println("debug sampler:", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func appendDebugRow(path string, snap *thread.ThreadSnapshot) error {
	logdir, logfile := filepath.Split(path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write([]string{"Unix", "Devices", "Streams", "Dropped", "Underruns", "SevereUnderruns", "Overruns"}); err != nil {
			return err
		}
	}

	var underruns, severe, overruns int
	for _, d := range snap.Devices {
		underruns += d.UnderrunCount
		severe += d.SevereUnderrunCount
	}
	for _, s := range snap.Streams {
		overruns += s.OverrunCount
	}

	row := []string{
		fmt.Sprint(time.Now().Unix()),
		fmt.Sprint(len(snap.Devices)),
		fmt.Sprint(len(snap.Streams)),
		fmt.Sprint(snap.Dropped()),
		fmt.Sprint(underruns),
		fmt.Sprint(severe),
		fmt.Sprint(overruns),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
