package audio_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/audio"
)

func TestSyntheticCaptureProducesValidWAV(t *testing.T) {
	c := audio.NewSyntheticCapturer(16000)

	data, err := c.CaptureFor(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("CaptureFor failed: %v", err)
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic: % x", data[:12])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Fatalf("unexpected sample rate: %d", rate)
	}

	wantSamples := int(16000 * 0.05)
	dataLen := binary.LittleEndian.Uint32(data[40:44])
	if int(dataLen) != wantSamples*2 {
		t.Fatalf("unexpected data length: got %d want %d", dataLen, wantSamples*2)
	}
	if len(data) != 44+wantSamples*2 {
		t.Fatalf("unexpected buffer size: %d", len(data))
	}
}

func TestSyntheticCaptureHonorsCancellation(t *testing.T) {
	c := audio.NewSyntheticCapturer(16000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.CaptureFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSyntheticCaptureRejectsNonPositiveDuration(t *testing.T) {
	c := audio.NewSyntheticCapturer(16000)
	if _, err := c.CaptureFor(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestMarkSuffixes(t *testing.T) {
	cases := map[audio.Mark]string{
		audio.MarkStart:  "start",
		audio.MarkMiddle: "middle",
		audio.MarkEnd:    "end",
	}
	for mark, want := range cases {
		if got := mark.String(); got != want {
			t.Fatalf("unexpected suffix for %d: got %q want %q", int(mark), got, want)
		}
	}
}
