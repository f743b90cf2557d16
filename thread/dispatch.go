package thread

// dispatch executes one command against t.pending and writes its response
// ack. Called only from the worker goroutine in runLoop, after reading one
// message off the to-thread pipe (§7 "every command dispatches through a
// single switch").
func (t *Thread) dispatch(cmd commandTag) {
	t.eventLog.Record(EvCommandReceived, commandName(cmd), t.now())

	req := t.pending
	switch cmd {
	case cmdAddOpenDev:
		err := t.devices.add(req.addOpenDev.dev)
		if err == nil {
			if req.addOpenDev.dev.Direction() == Output {
				// Pre-fill a freshly opened output device with silence up
				// to its minimum buffer level, avoiding a startup burst of
				// callbacks (§4.2).
				_ = req.addOpenDev.dev.FillSilence(req.addOpenDev.dev.MinBufferLevel())
			}
			t.eventLog.Record(EvDevAdded, "", t.now())
		}
		t.respond(int32(statusFor(err)))

	case cmdRmOpenDev:
		err := t.devices.remove(req.rmOpenDev)
		t.respond(int32(statusFor(err)))

	case cmdIsDevOpen:
		open := t.devices.isOpen(req.rmOpenDev)
		status := int32(0)
		if open {
			status = 1
		}
		t.respond(status)

	case cmdAddStream:
		err := t.attachStream(req.addStream.stream, req.addStream.devices)
		if err == nil {
			t.eventLog.Record(EvStreamAdded, "", t.now())
		}
		t.respond(int32(statusFor(err)))

	case cmdDisconnectStream:
		err := t.detachStream(req.disconnect.dir, req.disconnect.streamID, req.disconnect.devIndex)
		t.respond(int32(statusFor(err)))

	case cmdDrainStream:
		ms := t.drainStream(req.drain.streamID)
		t.respond(int32(ms))

	case cmdDevStartRamp:
		od, _ := t.devices.find(Output, req.ramp.devIndex)
		if od == nil {
			od, _ = t.devices.find(Input, req.ramp.devIndex)
		}
		var err error
		if od == nil {
			err = errInvalid
		} else {
			err = od.dev.StartRamp(req.ramp.ramp)
		}
		t.respond(int32(statusFor(err)))

	case cmdConfigGlobalRemix:
		old := t.remix
		t.remix = req.configRemix.converter
		req.oldConverter = old
		t.respond(errOK)

	case cmdDumpThreadInfo:
		t.dumpThreadInfo(req.dump.snapshot)
		t.respond(errOK)

	case cmdAECDump:
		err := t.handleAECDump(req.aecDump)
		t.respond(int32(statusFor(err)))

	case cmdAddCallback:
		t.callbacks.Add(req.addCB.fd, req.addCB.dir, req.addCB.fn, req.addCB.data)
		t.respond(errOK)

	case cmdRemoveCallback:
		t.callbacks.Remove(req.removeCB.fd)
		t.respond(errOK)

	case cmdStop:
		if t.logger != nil {
			t.logger.Printf("audiothread: STOP received, worker exiting")
		}
		t.respond(errOK)

	default:
		t.respond(errEINVAL)
	}
}

func commandName(cmd commandTag) string {
	switch cmd {
	case cmdAddOpenDev:
		return "ADD_OPEN_DEV"
	case cmdRmOpenDev:
		return "RM_OPEN_DEV"
	case cmdIsDevOpen:
		return "IS_DEV_OPEN"
	case cmdAddStream:
		return "ADD_STREAM"
	case cmdDisconnectStream:
		return "DISCONNECT_STREAM"
	case cmdDrainStream:
		return "DRAIN_STREAM"
	case cmdDevStartRamp:
		return "DEV_START_RAMP"
	case cmdConfigGlobalRemix:
		return "CONFIG_GLOBAL_REMIX"
	case cmdDumpThreadInfo:
		return "DUMP_THREAD_INFO"
	case cmdAECDump:
		return "AEC_DUMP"
	case cmdRemoveCallback:
		return "REMOVE_CALLBACK"
	case cmdStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}
