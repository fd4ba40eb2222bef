package audio

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/mitralabs/coco/internal/faults"
)

// Capturer yields encoded audio for a requested duration. Implementations
// block for roughly the requested duration and honor ctx cancellation.
type Capturer interface {
	CaptureFor(ctx context.Context, duration time.Duration) ([]byte, error)
}

// SyntheticCapturer produces WAV-encoded sine tones in real time. It stands
// in for a microphone during development and on units without one.
type SyntheticCapturer struct {
	SampleRate int
	// ToneHz is the generated frequency. Zero produces silence.
	ToneHz float64
}

// NewSyntheticCapturer returns a capturer generating a quiet 440 Hz tone at
// the given sample rate.
func NewSyntheticCapturer(sampleRate int) *SyntheticCapturer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &SyntheticCapturer{SampleRate: sampleRate, ToneHz: 440}
}

// CaptureFor waits out the requested duration, then returns a WAV buffer of
// exactly that length of mono 16-bit PCM.
func (c *SyntheticCapturer) CaptureFor(ctx context.Context, duration time.Duration) ([]byte, error) {
	if duration <= 0 {
		return nil, faults.Wrap(faults.ErrTransientIO, "audio", "capture", "non-positive duration", nil)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(duration):
	}

	samples := int(float64(c.SampleRate) * duration.Seconds())
	data := make([]byte, wavHeaderSize+samples*2)
	writeWAVHeader(data, c.SampleRate, samples)

	if c.ToneHz > 0 {
		step := 2 * math.Pi * c.ToneHz / float64(c.SampleRate)
		for i := 0; i < samples; i++ {
			sample := int16(2000 * math.Sin(step*float64(i)))
			binary.LittleEndian.PutUint16(data[wavHeaderSize+i*2:], uint16(sample))
		}
	}
	return data, nil
}

const wavHeaderSize = 44

// writeWAVHeader fills buf[:44] with a canonical RIFF/WAVE header for mono
// 16-bit PCM with the given sample count.
func writeWAVHeader(buf []byte, sampleRate, samples int) {
	dataLen := samples * 2

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
}
