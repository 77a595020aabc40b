package reputation

// Read paths. None of these require privilege.

// Score returns user's current reputation score.
func (l *Ledger) Score(user string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scores[user]
}

// StakedOf returns user's total staked reputation.
func (l *Ledger) StakedOf(user string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.staked[user]
}

// Liquid returns user's unstaked reputation (score - totalStaked).
func (l *Ledger) Liquid(user string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scores[user] - l.staked[user]
}

// IsDelinquent reports whether user is locked for unresolved defaults.
func (l *Ledger) IsDelinquent(user string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.delinquent[user]
}

// StakeFor returns the stake for purposeID, if one was ever created.
func (l *Ledger) StakeFor(purposeID string) (Stake, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.stakes[purposeID]
	if !ok {
		return Stake{}, false
	}
	return *s, true
}

// RecordOf returns user's aggregate record.
func (l *Ledger) RecordOf(user string) Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Record{
		Score:       l.scores[user],
		TotalStaked: l.staked[user],
		Delinquent:  l.delinquent[user],
	}
}

// TotalReputation returns the sum of all scores.
func (l *Ledger) TotalReputation() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Stakes returns a copy of every stake ever created, for persistence.
func (l *Ledger) Stakes() []Stake {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Stake, 0, len(l.stakes))
	for _, s := range l.stakes {
		out = append(out, *s)
	}
	return out
}

// Records returns every identity's aggregate record, for persistence.
func (l *Ledger) Records() map[string]Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	users := make(map[string]struct{})
	for u := range l.scores {
		users[u] = struct{}{}
	}
	for u := range l.staked {
		users[u] = struct{}{}
	}
	for u := range l.delinquent {
		users[u] = struct{}{}
	}
	out := make(map[string]Record, len(users))
	for u := range users {
		out[u] = Record{Score: l.scores[u], TotalStaked: l.staked[u], Delinquent: l.delinquent[u]}
	}
	return out
}
