package session

// historyEntry snapshots the state produced after one successful command,
// paired with the state_hash a client would have observed at that point.
type historyEntry struct {
	hash  string
	state *State
}

// maxHistory bounds how far back a client can be and still reconcile
// instead of falling back to a full refresh. Sessions are short-lived
// (one editing pass against one ref), so this comfortably covers a client
// that missed a handful of broadcasts.
const maxHistory = 50

// recordHistory appends the just-produced state as a new history point and
// logs cmd as applied since session start, trimming both to maxHistory.
func (s *Session) recordHistory(cmd CommandTag) {
	s.history = append(s.history, historyEntry{hash: s.state.StateHash, state: s.state.Clone()})
	s.commandLog = append(s.commandLog, cmd)
	if len(s.history) > maxHistory {
		drop := len(s.history) - maxHistory
		s.history = s.history[drop:]
		s.commandLog = s.commandLog[drop:]
	}
}

// resetHistory clears history/commandLog and seeds a single entry for the
// freshly (re)initialized state. Called by init/clear/refresh.
func (s *Session) resetHistory() {
	s.history = []historyEntry{{hash: s.state.StateHash, state: s.state.Clone()}}
	s.commandLog = nil
}

// reconcile builds the state-mismatch payload spec.md §4.4 describes: a
// differences diff between the state the client last agreed on and the
// server's current state, plus the ordered list of commands applied since
// that point so the client can decide whether to replay them locally or
// just refresh. If clientStateHash isn't in history (too old, or never
// seen), there is nothing to replay against — the client must refresh.
func (s *Session) reconcile(clientStateHash string) *Result {
	for i, entry := range s.history {
		if entry.hash != clientStateHash {
			continue
		}
		replay := append([]CommandTag{}, s.commandLog[i:]...)
		return &Result{
			Differences: DiffStates(entry.state.Packs, s.state.Packs),
			Reconcile:   replay,
			StateHash:   s.state.StateHash,
			Warnings:    s.state.Warnings,
		}
	}
	return &Result{
		Differences: Diff(toGenericMap(s.state.Packs)),
		Reconcile:   nil,
		StateHash:   s.state.StateHash,
		Warnings:    s.state.Warnings,
	}
}
