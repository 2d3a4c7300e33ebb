package proto

import "encoding/binary"

// TaskInfo is the task summary returned by the task info syscall.
type TaskInfo struct {
	ID       uint32
	State    uint8
	Priority uint8
	Exit     uint8
	Queued   uint16
	Dropped  uint32
	Yields   uint32
	Runtime  uint64
	Name     string
}

// PutTaskInfo encodes ti into b, which must hold TaskInfoRecordSize bytes.
// Names longer than TaskNameMax are truncated.
//
// Layout (little-endian):
//   - u32: id
//   - u8:  state
//   - u8:  priority
//   - u8:  exit reason
//   - u8:  name length
//   - u16: queued events
//   - u16: reserved
//   - u32: dropped events
//   - u32: yields
//   - u64: runtime ticks
//   - [TaskNameMax]byte: name
func PutTaskInfo(b []byte, ti TaskInfo) bool {
	if len(b) < TaskInfoRecordSize {
		return false
	}
	name := ti.Name
	if len(name) > TaskNameMax {
		name = name[:TaskNameMax]
	}
	binary.LittleEndian.PutUint32(b[0:4], ti.ID)
	b[4] = ti.State
	b[5] = ti.Priority
	b[6] = ti.Exit
	b[7] = byte(len(name))
	binary.LittleEndian.PutUint16(b[8:10], ti.Queued)
	binary.LittleEndian.PutUint16(b[10:12], 0)
	binary.LittleEndian.PutUint32(b[12:16], ti.Dropped)
	binary.LittleEndian.PutUint32(b[16:20], ti.Yields)
	binary.LittleEndian.PutUint64(b[20:28], ti.Runtime)
	n := copy(b[28:28+TaskNameMax], name)
	clear(b[28+n : 28+TaskNameMax])
	return true
}

// DecodeTaskInfo decodes a record written by PutTaskInfo.
func DecodeTaskInfo(b []byte) (ti TaskInfo, ok bool) {
	if len(b) < TaskInfoRecordSize || int(b[7]) > TaskNameMax {
		return TaskInfo{}, false
	}
	ti.ID = binary.LittleEndian.Uint32(b[0:4])
	ti.State = b[4]
	ti.Priority = b[5]
	ti.Exit = b[6]
	ti.Queued = binary.LittleEndian.Uint16(b[8:10])
	ti.Dropped = binary.LittleEndian.Uint32(b[12:16])
	ti.Yields = binary.LittleEndian.Uint32(b[16:20])
	ti.Runtime = binary.LittleEndian.Uint64(b[20:28])
	ti.Name = string(b[28 : 28+int(b[7])])
	return ti, true
}

// Stats is the kernel summary returned by the stats syscall.
type Stats struct {
	Total           uint32
	Active          uint32
	ContextSwitches uint64
	Yields          uint64
	Delivered       uint64
	Dropped         uint64
}

// PutStats encodes s into b, which must hold StatsRecordSize bytes.
//
// Layout (little-endian): u32 total, u32 active, then u64 context switches,
// yields, delivered events and dropped events.
func PutStats(b []byte, s Stats) bool {
	if len(b) < StatsRecordSize {
		return false
	}
	binary.LittleEndian.PutUint32(b[0:4], s.Total)
	binary.LittleEndian.PutUint32(b[4:8], s.Active)
	binary.LittleEndian.PutUint64(b[8:16], s.ContextSwitches)
	binary.LittleEndian.PutUint64(b[16:24], s.Yields)
	binary.LittleEndian.PutUint64(b[24:32], s.Delivered)
	binary.LittleEndian.PutUint64(b[32:40], s.Dropped)
	return true
}

// DecodeStats decodes a record written by PutStats.
func DecodeStats(b []byte) (s Stats, ok bool) {
	if len(b) < StatsRecordSize {
		return Stats{}, false
	}
	s.Total = binary.LittleEndian.Uint32(b[0:4])
	s.Active = binary.LittleEndian.Uint32(b[4:8])
	s.ContextSwitches = binary.LittleEndian.Uint64(b[8:16])
	s.Yields = binary.LittleEndian.Uint64(b[16:24])
	s.Delivered = binary.LittleEndian.Uint64(b[24:32])
	s.Dropped = binary.LittleEndian.Uint64(b[32:40])
	return s, true
}
