package signal

// Transition evaluates the alert latch for one symbol. prev is the last
// notified side (SideNone for a never-seen symbol), sig the freshly computed
// signal. fire reports whether the transition is worth a notification; next
// is the side to persist.
//
// NONE signals never touch the stored side: a lapse into "no signal" is not
// memorised, so the latch holds the last non-trivial side until the opposite
// side shows up. A repeated side is suppressed.
func Transition(prev Side, sig Signal) (next Side, fire bool) {
	side := sig.Side()
	if side == SideNone || side == prev {
		return prev, false
	}
	return side, true
}
