package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// inputEventSize is the on-wire size of inputEvent (24 bytes on 64-bit Linux).
var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvent parses one little-endian input_event from buf.
func decodeInputEvent(reader *bytes.Reader, buf []byte) (inputEvent, error) {
	reader.Reset(buf)
	var ev inputEvent
	if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
		return inputEvent{}, err
	}
	return ev, nil
}

// readInputEvents reads input events from r and sends them to events until
// ctx is canceled or the stream ends. A clean EOF returns io.EOF.
func readInputEvents(ctx context.Context, r io.Reader, events chan<- inputEvent) error {
	buf := make([]byte, inputEventSize)
	reader := bytes.NewReader(buf) // Reusable reader, reset on each iteration

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("short input event: %w", err)
			}
			return err
		}

		ev, err := decodeInputEvent(reader, buf)
		if err != nil {
			// Skip malformed events
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
