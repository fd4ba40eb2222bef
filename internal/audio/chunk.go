package audio

import "time"

// Mark denotes a chunk's position within a recording session. Exactly one
// Start opens a session and exactly one End closes it.
type Mark int

const (
	MarkStart Mark = iota
	MarkMiddle
	MarkEnd
)

// String returns the filename suffix for the mark.
func (m Mark) String() string {
	switch m {
	case MarkStart:
		return "start"
	case MarkEnd:
		return "end"
	default:
		return "middle"
	}
}

// Chunk is one unit of captured audio. The holder owns Data exclusively; it
// is handed from capture to the bounded queue to persistence and never
// aliased, so a failed write cannot leak a buffer another task still uses.
type Chunk struct {
	Data       []byte
	CapturedAt time.Time
	Mark       Mark
}

// Size returns the payload length in bytes.
func (c Chunk) Size() int {
	return len(c.Data)
}
