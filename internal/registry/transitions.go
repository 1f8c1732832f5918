package registry

// transitions lists the moves a session may make. Result and progress events
// for the same item are not ordered, so a pending item may jump straight to a
// terminal state. Terminal states have no exits; only ResetStatuses, between
// sessions, brings an item back to pending.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusError},
	StatusProcessing: {StatusCompleted, StatusError},
	StatusCompleted:  {},
	StatusError:      {},
}

// CanTransition reports whether an item in from may move to to. Re-entering
// processing is accepted so progress replays stay idempotent.
func CanTransition(from, to Status) bool {
	if from == StatusProcessing && to == StatusProcessing {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
