package task

import (
	"errors"
	"testing"

	"tunesync/internal/core"
)

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{"Queued to running", StatusQueued, StatusRunning, true},
		{"Queued to canceled", StatusQueued, StatusCanceled, true},
		{"Queued to finished", StatusQueued, StatusFinished, false},
		{"Running to finished", StatusRunning, StatusFinished, true},
		{"Running to failed", StatusRunning, StatusFailed, true},
		{"Running to canceled", StatusRunning, StatusCanceled, true},
		{"Running to on hold", StatusRunning, StatusOnHold, true},
		{"Running to queued", StatusRunning, StatusQueued, false},
		{"On hold to running", StatusOnHold, StatusRunning, true},
		{"On hold to failed", StatusOnHold, StatusFailed, true},
		{"On hold to canceled", StatusOnHold, StatusCanceled, true},
		{"On hold to finished", StatusOnHold, StatusFinished, false},
		{"Same status no-op", StatusRunning, StatusRunning, true},
		{"Terminal same status", StatusFinished, StatusFinished, false},
		{"Finished to running", StatusFinished, StatusRunning, false},
		{"Failed to queued", StatusFailed, StatusQueued, false},
		{"Canceled to running", StatusCanceled, StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestRecord_Transition(t *testing.T) {
	rec := &Record{TaskID: "t1", Kind: KindPlaylistTransfer, Status: StatusQueued}

	if err := rec.Transition(StatusRunning, ""); err != nil {
		t.Fatalf("queued -> running: %v", err)
	}
	if rec.DoneAt != 0 {
		t.Error("non-terminal transition must not stamp DoneAt")
	}

	if err := rec.Transition(StatusFinished, ""); err != nil {
		t.Fatalf("running -> finished: %v", err)
	}
	if rec.DoneAt == 0 {
		t.Error("terminal transition must stamp DoneAt")
	}

	err := rec.Transition(StatusRunning, "")
	if err == nil {
		t.Fatal("terminal record accepted a transition")
	}
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("illegal transition error = %v, want ErrInvalidArgument", err)
	}
}

func TestRecord_TransitionReplacesReason(t *testing.T) {
	rec := &Record{TaskID: "t1", Kind: KindPlaylistTransfer, Status: StatusRunning}

	if err := rec.Transition(StatusOnHold, "pausing to avoid a rate limit"); err != nil {
		t.Fatal(err)
	}
	if err := rec.Transition(StatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	if rec.StatusReason != "" {
		t.Errorf("resume should clear the reason, got %q", rec.StatusReason)
	}
}

func TestRecord_EncodeDecode(t *testing.T) {
	rec := &Record{
		TaskID: "9f7a",
		Kind:   KindPlaylistTransfer,
		Status: StatusQueued,
		Arguments: TransferArgs{
			FromProvider: core.ServiceSpotify,
			ToProvider:   core.ServiceSubsonic,
			FromPlaylist: "37i9dQ",
		},
		Progress: TaskProgress{Handled: 3, InQueue: 7},
		QueuedAt: 1724457600,
	}

	raw, err := rec.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRecord(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TaskID != rec.TaskID || got.Status != rec.Status || got.Arguments != rec.Arguments {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
	if got.Progress.Handled != 3 || got.Progress.InQueue != 7 {
		t.Errorf("progress mismatch: %+v", got.Progress)
	}
}

func TestDecodeRecord_Invalid(t *testing.T) {
	if _, err := DecodeRecord("not json"); err == nil {
		t.Error("expected error for malformed record")
	}
}
