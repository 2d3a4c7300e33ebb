package proto

import (
	"encoding/binary"

	"sparkcore/sparkos/kernel/event"
)

// PutEvent encodes ev into b, which must hold EventRecordSize bytes.
//
// Layout (little-endian):
//   - u8:  kind
//   - u8:  buttons
//   - u16: code
//   - u32: rune
//   - u64: timestamp (ms)
//   - i32: x
//   - i32: y
func PutEvent(b []byte, ev event.Event) bool {
	if len(b) < EventRecordSize {
		return false
	}
	b[0] = byte(ev.Kind)
	b[1] = byte(ev.Buttons)
	binary.LittleEndian.PutUint16(b[2:4], ev.Code)
	binary.LittleEndian.PutUint32(b[4:8], uint32(ev.Rune))
	binary.LittleEndian.PutUint64(b[8:16], ev.Timestamp)
	binary.LittleEndian.PutUint32(b[16:20], uint32(ev.X))
	binary.LittleEndian.PutUint32(b[20:24], uint32(ev.Y))
	return true
}

// DecodeEvent decodes a record written by PutEvent.
func DecodeEvent(b []byte) (ev event.Event, ok bool) {
	if len(b) < EventRecordSize {
		return event.Event{}, false
	}
	ev.Kind = event.Kind(b[0])
	if !ev.Kind.Valid() {
		return event.Event{}, false
	}
	ev.Buttons = event.Button(b[1])
	ev.Code = binary.LittleEndian.Uint16(b[2:4])
	ev.Rune = rune(binary.LittleEndian.Uint32(b[4:8]))
	ev.Timestamp = binary.LittleEndian.Uint64(b[8:16])
	ev.X = int32(binary.LittleEndian.Uint32(b[16:20]))
	ev.Y = int32(binary.LittleEndian.Uint32(b[20:24]))
	return ev, true
}
