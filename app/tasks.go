package app

import (
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/sched"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/proto"
)

// kernelTasks is the scheduler and router as seen by system calls.
type kernelTasks struct {
	s *System
}

func (k kernelTasks) Lookup(tok lockorder.Token[lockorder.Clean], id task.ID) (task.Handle, error) {
	return k.s.sched.Lookup(tok, id)
}

func (k kernelTasks) Kill(tok lockorder.Token[lockorder.Clean], id task.ID) error {
	return k.s.sched.Kill(tok, id)
}

func (k kernelTasks) TaskInfo(tok lockorder.Token[lockorder.Clean], id task.ID) (proto.TaskInfo, error) {
	info, err := k.s.sched.TaskInfo(tok, id)
	if err != nil {
		return proto.TaskInfo{}, err
	}
	return taskInfo(info), nil
}

func (k kernelTasks) Stats(lockorder.Token[lockorder.Clean]) proto.Stats {
	st := k.s.sched.Stats()
	in := k.s.router.Stats()
	return proto.Stats{
		Total:           uint32(st.Total),
		Active:          uint32(st.Active),
		ContextSwitches: st.ContextSwitches,
		Yields:          st.Yields,
		Delivered:       in.Delivered,
		Dropped:         in.Unfocused + in.Overflow,
	}
}

func taskInfo(info sched.Info) proto.TaskInfo {
	return proto.TaskInfo{
		ID:       uint32(info.ID),
		State:    uint8(info.State),
		Priority: uint8(info.Priority),
		Exit:     uint8(info.Exit),
		Queued:   uint16(min(info.Queued, 0xFFFF)),
		Dropped:  uint32(min(info.Dropped, 0xFFFFFFFF)),
		Yields:   uint32(min(info.Yields, 0xFFFFFFFF)),
		Runtime:  info.Runtime,
		Name:     info.Name,
	}
}
