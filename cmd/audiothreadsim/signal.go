//go:build linux || darwin || freebsd

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
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtaci/audiothread/thread"
)

// listenSignals installs a SIGUSR1 handler that dumps the current thread
// snapshot to the log, the same on-demand diagnostic hook as client/signal.go's
// SIGUSR1 -> kcp.DefaultSnmp.Copy() dump, here pointed at DUMP_THREAD_INFO.
func listenSignals(th *thread.Thread, logln func(v ...any)) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)

	go func() {
		snap := &thread.ThreadSnapshot{}
		for range ch {
			if err := th.DumpThreadInfo(snap); err != nil {
				log.Println("SIGUSR1: DUMP_THREAD_INFO:", err)
				continue
			}
			logln("SIGUSR1: devices:", len(snap.Devices), "streams:", len(snap.Streams), "dropped:", snap.Dropped())
		}
	}()
}
