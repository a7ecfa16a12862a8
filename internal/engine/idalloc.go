package engine

// allocate assigns dense context ids in two passes over the partition order
// and returns the ready prefix length and the structural context count.
//
// Pass 1 numbers every node with no real producer and no at-start gating.
// A ready collective only numbers its zero-input subtasks here; the rest wait
// on internal edges and are numbered in pass 2 so the ready prefix holds
// nothing but pred_count == 0 contexts. Pass 2 numbers everything left.
func (b *build) allocate() (ready, total uint32) {
	var next uint32

	for _, id := range b.plan.Order {
		st := b.states[id]
		if st == nil || !st.ready() {
			continue
		}
		st.ids = make([]uint32, st.contextCount())
		for i := range st.ids {
			if st.mode == ModeCollective && st.subtaskInputs[i] > 0 {
				st.ids[i] = unassigned
				continue
			}
			st.ids[i] = next
			next++
		}
		st.pass = 1
	}
	ready = next

	for _, id := range b.plan.Order {
		st := b.states[id]
		if st == nil {
			continue
		}
		if st.ids == nil {
			st.ids = make([]uint32, st.contextCount())
			for i := range st.ids {
				st.ids[i] = unassigned
			}
			st.pass = 2
		}
		for i := range st.ids {
			if st.ids[i] == unassigned {
				st.ids[i] = next
				next++
			}
		}
	}
	return ready, next
}
