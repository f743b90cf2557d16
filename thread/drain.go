package thread

// drainStream implements DRAIN_STREAM (§4.4). Only output streams drain:
// only the output device list is searched, so a stream bound only to
// input devices is reported as not attached and gets 0.
func (t *Thread) drainStream(streamID int) int {
	attached := false
	for _, od := range t.devices.list(Output) {
		if od.hasStream(streamID) {
			attached = true
			break
		}
	}
	if !attached {
		return 0
	}

	var s Stream
	for _, od := range t.devices.list(Output) {
		if ds, _ := od.streams.find(streamID); ds != nil {
			s = ds.stream
			break
		}
	}
	if s == nil {
		return 0
	}

	frames := s.SharedMemFrames()
	if frames <= 0 {
		// "remove the stream from all output devices and return 0 (the
		// controller is informed the stream is fully reaped and must not
		// reference it again)."
		_ = t.detachStream(Output, streamID, -1)
		return 0
	}

	s.SetDraining(true)
	rateHz := s.Format().RateHz
	if rateHz <= 0 {
		rateHz = 1
	}
	return 1 + frames*1000/rateHz
}
