package viewer

import "github.com/vmihailenco/msgpack/v5"

// Frame is one snapshot of the run, sent to every viewer as a binary
// msgpack message.
type Frame struct {
	Tick     uint64      `msgpack:"tick"`
	Bounds   [4]float64  `msgpack:"bounds"` // min x, min y, max x, max y
	Bodies   []BodyView  `msgpack:"bodies"`
	Contacts [][2]uint64 `msgpack:"contacts"`
	Buckets  []int       `msgpack:"buckets"` // resident buckets per level
}

type BodyView struct {
	ID    uint64  `msgpack:"id"`
	Kind  string  `msgpack:"k"`
	X     float64 `msgpack:"x"`
	Y     float64 `msgpack:"y"`
	W     float64 `msgpack:"w"`
	H     float64 `msgpack:"h"`
	Level int     `msgpack:"l"`
}

func EncodeFrame(f *Frame) ([]byte, error) {
	return msgpack.Marshal(f)
}

func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
