package uthread

// wakeExpiredLocked is the sleep-wake scan (C6): every slot BLOCKED with a
// wake-at quantum that has arrived is promoted to READY and its wake-at
// cleared. Called once per quantum tick with mu already held.
//
// Any transition out of BLOCKED — by this scan or by an explicit Resume —
// clears wakeAt, which is what lets an explicit resume race ahead of a
// pending sleep timeout (§4.6): whichever happens first wins, and the
// other is then a no-op against an already-READY thread.
func wakeExpiredLocked() {
	for i := range tcbs {
		t := &tcbs[i]
		if t.state == StateBlocked && t.wakeAt != 0 && t.wakeAt <= totalQuantums {
			t.wakeAt = 0
			t.state = StateReady
			logTransition(i, StateBlocked, StateReady)
		}
	}
}
