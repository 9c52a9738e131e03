package feed

import (
	"bufio"
	"io"
	"strings"
)

// Frame is one Server-Sent Event from the feed: an event name and the
// accumulated data payload. The feed uses three event names: "state",
// "message", and "heartbeat".
type Frame struct {
	Event string
	Data  []byte
}

// Per the SSE spec an event without an explicit "event:" field is named
// "message", which is also the feed's message-delta event.
const defaultEventName = "message"

// ReadFrames parses a Server-Sent Events stream and invokes emit for
// each complete frame, in order. It returns when the stream ends (nil),
// when the reader fails, or when emit returns an error.
//
// Multi-line data fields are joined with newlines, comment lines
// (leading ':') are ignored, and trailing CR is stripped so CRLF
// streams parse the same as LF streams.
func ReadFrames(r io.Reader, emit func(Frame) error) error {
	scanner := bufio.NewScanner(r)
	// Message deltas can carry large tool outputs
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := defaultEventName
	var data []string
	haveData := false

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			// Blank line terminates the frame
			if haveData {
				frame := Frame{Event: event, Data: []byte(strings.Join(data, "\n"))}
				if err := emit(frame); err != nil {
					return err
				}
			}
			event = defaultEventName
			data = data[:0]
			haveData = false
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			field = line
			value = ""
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
			haveData = true
		}
		// "id" and "retry" fields are unused by the feed
	}

	return scanner.Err()
}
