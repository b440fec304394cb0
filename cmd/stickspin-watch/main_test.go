package main

import "testing"

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		show bool
	}{
		{
			name: "state_init",
			in:   `{"type":"state_init","data":{"attached":true,"expected_slice":3,"completed_rotations":2,"stats":{"attempts":4,"timeouts":1,"best_rotation_s":0.5}}}`,
			want: "state: input attached, next slice 3, rotations 2, attempts 4, timeouts 1, best 0.50s",
			show: true,
		},
		{
			name: "elapsed_changed",
			in:   `{"type":"elapsed_changed","ts":"2026-01-02T03:04:05Z","data":{"elapsed_s":1.2}}`,
			want: "elapsed 1.20s",
			show: true,
		},
		{name: "elapsed_reset", in: `{"type":"elapsed_reset","data":{}}`, want: "elapsed --", show: true},
		{
			name: "slice_ticked",
			in:   `{"type":"slice_ticked","data":{"slice":2,"expected":3}}`,
			want: "slice 2 ticked, next 3",
			show: true,
		},
		{
			name: "rotation_completed",
			in:   `{"type":"rotation_completed","data":{"rotations":7,"duration_s":0.5}}`,
			want: "rotation 7 done in 0.50s",
			show: true,
		},
		{
			name: "attempt_timed_out",
			in:   `{"type":"attempt_timed_out","data":{"elapsed_s":2.01}}`,
			want: "attempt timed out after 2.01s",
			show: true,
		},
		{
			name: "detached with reason",
			in:   `{"type":"input_changed","data":{"attached":false,"reason":"ipc"}}`,
			want: "input detached (ipc)",
			show: true,
		},
		{name: "attached", in: `{"type":"input_changed","data":{"attached":true}}`, want: "input attached", show: true},
		{name: "unknown type", in: `{"type":"mystery","data":{"a":1}}`, want: `[mystery] {"a":1}`, show: true},
		{name: "not json", in: `hello`, want: "[TEXT] hello", show: true},
		{name: "no type", in: `{}`, want: "", show: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, show := formatFrame([]byte(tt.in))
			if show != tt.show {
				t.Fatalf("expected show=%v, got %v", tt.show, show)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
