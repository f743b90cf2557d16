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

// serveControl stands in for "the IPC/RPC server that accepts client
// connections" (spec.md §1, explicitly out of scope for the core itself):
// it is a concrete fd source registered against the audio thread's callback
// registry (§4.5) so the demo actually exercises dispatchCallbacks, the way
// client/main.go's accept loop handed connections to handleClient over a
// smux-multiplexed kcp session. Here each smux stream carries one text
// command against the running Thread instead of tunneled bytes.
package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xtaci/smux"

	"github.com/xtaci/audiothread/std"
	"github.com/xtaci/audiothread/thread"
)

func serveControl(th *thread.Thread, addr string, logln func(v ...any)) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "serveControl: listen")
	}

	tl, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, errors.New("serveControl: expected a TCP listener")
	}
	lf, err := tl.File()
	if err != nil {
		ln.Close()
		return nil, errors.Wrap(err, "serveControl: listener fd")
	}

	smuxCfg, err := std.BuildSmuxConfig(2, 4*1024*1024, 2*1024*1024, 8192, 10)
	if err != nil {
		ln.Close()
		lf.Close()
		return nil, errors.Wrap(err, "serveControl: smux config")
	}

	onReadable := func(fd int, data any) {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Println("serveControl: accept:", err)
			}
			return
		}
		logln("control connection accepted:", conn.RemoteAddr())
		go handleControlConn(th, conn, smuxCfg, logln)
	}

	if err := th.AddCallback(int(lf.Fd()), thread.CallbackRead, onReadable, "control-listener"); err != nil {
		ln.Close()
		lf.Close()
		return nil, errors.Wrap(err, "serveControl: AddCallback")
	}

	stop := func() {
		th.RemoveCallback(int(lf.Fd()))
		lf.Close()
		ln.Close()
	}
	return stop, nil
}

func handleControlConn(th *thread.Thread, conn net.Conn, cfg *smux.Config, logln func(v ...any)) {
	defer conn.Close()
	session, err := smux.Server(conn, cfg)
	if err != nil {
		log.Println("serveControl: smux.Server:", err)
		return
	}
	defer session.Close()

	for {
		stream, err := session.AcceptStream()
		if err != nil {
			return
		}
		go handleControlStream(th, stream, logln)
	}
}

func handleControlStream(th *thread.Thread, stream *smux.Stream, logln func(v ...any)) {
	defer stream.Close()
	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		reply := dispatchControlLine(th, scanner.Text())
		fmt.Fprintln(stream, reply)
	}
}

// dispatchControlLine implements the demo's tiny text protocol:
//
//	DUMP                -> device/stream/dropped counts from DUMP_THREAD_INFO
//	DRAIN <streamID>     -> DRAIN_STREAM's ms-remaining
//	ISOPEN <deviceIndex>  -> IS_DEV_OPEN
func dispatchControlLine(th *thread.Thread, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERR empty command"
	}
	switch strings.ToUpper(fields[0]) {
	case "DUMP":
		snap := &thread.ThreadSnapshot{}
		if err := th.DumpThreadInfo(snap); err != nil {
			return "ERR " + err.Error()
		}
		return fmt.Sprintf("OK devices=%d streams=%d dropped=%d", len(snap.Devices), len(snap.Streams), snap.Dropped())

	case "DRAIN":
		if len(fields) != 2 {
			return "ERR usage: DRAIN <streamID>"
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return "ERR bad stream id"
		}
		ms, err := th.DrainStream(id)
		if err != nil {
			return "ERR " + err.Error()
		}
		return fmt.Sprintf("OK ms_remaining=%d", ms)

	case "ISOPEN":
		if len(fields) != 2 {
			return "ERR usage: ISOPEN <deviceIndex>"
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return "ERR bad device index"
		}
		open, err := th.IsDeviceOpen(id)
		if err != nil {
			return "ERR " + err.Error()
		}
		return fmt.Sprintf("OK open=%v", open)

	default:
		return "ERR unknown command " + fields[0]
	}
}
