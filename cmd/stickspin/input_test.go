package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func encodeEvents(t *testing.T, evs ...inputEvent) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range evs {
		if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
			t.Fatalf("encode event: %v", err)
		}
	}
	return &buf
}

func TestInputEventSize(t *testing.T) {
	if inputEventSize != 24 {
		t.Fatalf("expected 24-byte input_event, got %d", inputEventSize)
	}
}

func TestReadInputEvents_DecodesStream(t *testing.T) {
	want := []inputEvent{
		{Sec: 1, Usec: 2, Type: EV_ABS, Code: ABS_RX, Value: -1234},
		{Sec: 1, Usec: 3, Type: EV_SYN, Code: SYN_REPORT, Value: 0},
	}
	buf := encodeEvents(t, want...)

	events := make(chan inputEvent, len(want))
	err := readInputEvents(context.Background(), buf, events)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}

	close(events)
	var got []inputEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestReadInputEvents_ShortRead(t *testing.T) {
	buf := encodeEvents(t, inputEvent{Type: EV_KEY, Code: BTN_SELECT, Value: 1})
	buf.Truncate(inputEventSize - 4)

	err := readInputEvents(context.Background(), buf, make(chan inputEvent, 1))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadInputEvents_StopsOnCancel(t *testing.T) {
	buf := encodeEvents(t, inputEvent{Type: EV_KEY}, inputEvent{Type: EV_KEY})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered and unread: the send can only finish via ctx.
	err := readInputEvents(ctx, buf, make(chan inputEvent))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
