package revocation

import (
	"time"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	tokens "github.com/dropDatabas3/sessionguard/internal/security/token"
	"github.com/dropDatabas3/sessionguard/internal/util/shard"
	gocache "github.com/patrickmn/go-cache"
)

// Memory es el registro in-process. La blacklist usa go-cache con el janitor
// apagado (el barrido lo hace Run); los refresh vivos viven en un map
// particionado por subject.
type Memory struct {
	clock     clock.Clock
	blacklist *gocache.Cache
	refresh   *shard.Map[map[string]RefreshRecord] // subject -> fingerprint -> record
}

// NewMemory crea un registro vacío.
func NewMemory(c clock.Clock) *Memory {
	return &Memory{
		clock:     clock.OrSystem(c),
		blacklist: gocache.New(gocache.NoExpiration, 0),
		refresh:   shard.New[map[string]RefreshRecord](shard.DefaultCount),
	}
}

func (m *Memory) BlacklistAccessToken(tokenOrJTI string, expiresAt time.Time) {
	ttl := expiresAt.Sub(m.clock.Now())
	if ttl <= 0 {
		// ya expiró: el codec lo rechaza solo
		return
	}
	key := blacklistKey(tokenOrJTI)
	if err := m.blacklist.Add(key, expiresAt, ttl); err == nil {
		return
	}
	if cur, ok := m.blacklist.Get(key); ok && !cur.(time.Time).Before(expiresAt) {
		return
	}
	m.blacklist.Set(key, expiresAt, ttl)
}

func (m *Memory) IsAccessTokenBlacklisted(tokenOrJTI string) bool {
	key := blacklistKey(tokenOrJTI)
	v, ok := m.blacklist.Get(key)
	if !ok {
		return false
	}
	if !m.clock.Now().Before(v.(time.Time)) {
		m.blacklist.Delete(key)
		return false
	}
	return true
}

func (m *Memory) RecordRefreshToken(subjectID, token string, rec RefreshRecord) {
	if subjectID == "" || token == "" || !m.clock.Now().Before(rec.ExpiresAt) {
		return
	}
	fp := tokens.Fingerprint(token)
	m.refresh.With(subjectID, func(cur map[string]RefreshRecord, ok bool) (map[string]RefreshRecord, bool) {
		if !ok {
			cur = make(map[string]RefreshRecord, 1)
		}
		cur[fp] = rec
		return cur, true
	})
}

// lookup corre bajo el lock del subject; elimina la entrada si expiró y, si
// consume es true, también si estaba viva.
func (m *Memory) lookup(subjectID, token string, consume bool) (RefreshRecord, bool) {
	var (
		out  RefreshRecord
		live bool
	)
	fp := tokens.Fingerprint(token)
	now := m.clock.Now()
	m.refresh.With(subjectID, func(cur map[string]RefreshRecord, ok bool) (map[string]RefreshRecord, bool) {
		if !ok {
			return nil, false
		}
		rec, found := cur[fp]
		switch {
		case !found:
		case !now.Before(rec.ExpiresAt):
			delete(cur, fp)
		default:
			out, live = rec, true
			if consume {
				delete(cur, fp)
			}
		}
		return cur, len(cur) > 0
	})
	return out, live
}

func (m *Memory) IsRefreshTokenLive(subjectID, token string) bool {
	_, live := m.lookup(subjectID, token, false)
	return live
}

func (m *Memory) LookupRefreshToken(subjectID, token string) (RefreshRecord, bool) {
	return m.lookup(subjectID, token, false)
}

func (m *Memory) RotateRefreshToken(subjectID, oldToken, newToken string, rec RefreshRecord) (RefreshRecord, bool) {
	var (
		prev RefreshRecord
		live bool
	)
	oldFP, newFP := tokens.Fingerprint(oldToken), tokens.Fingerprint(newToken)
	now := m.clock.Now()
	m.refresh.With(subjectID, func(cur map[string]RefreshRecord, ok bool) (map[string]RefreshRecord, bool) {
		if !ok {
			return nil, false
		}
		old, found := cur[oldFP]
		if !found {
			return cur, len(cur) > 0
		}
		delete(cur, oldFP)
		if !now.Before(old.ExpiresAt) {
			return cur, len(cur) > 0
		}
		prev, live = old, true
		if newToken != "" && now.Before(rec.ExpiresAt) {
			cur[newFP] = rec
		}
		return cur, len(cur) > 0
	})
	return prev, live
}

func (m *Memory) ConsumeRefreshToken(subjectID, token string) (RefreshRecord, bool) {
	return m.lookup(subjectID, token, true)
}

func (m *Memory) KillRefreshToken(subjectID, token string) bool {
	fp := tokens.Fingerprint(token)
	killed := false
	m.refresh.With(subjectID, func(cur map[string]RefreshRecord, ok bool) (map[string]RefreshRecord, bool) {
		if !ok {
			return nil, false
		}
		if _, found := cur[fp]; found {
			delete(cur, fp)
			killed = true
		}
		return cur, len(cur) > 0
	})
	return killed
}

func (m *Memory) KillAllRefreshTokens(subjectID string) int {
	n := 0
	m.refresh.With(subjectID, func(cur map[string]RefreshRecord, ok bool) (map[string]RefreshRecord, bool) {
		n = len(cur)
		return nil, false
	})
	return n
}

func (m *Memory) ListRefreshTokens(subjectID string) []RefreshRecord {
	var out []RefreshRecord
	now := m.clock.Now()
	m.refresh.With(subjectID, func(cur map[string]RefreshRecord, ok bool) (map[string]RefreshRecord, bool) {
		if !ok {
			return nil, false
		}
		for fp, rec := range cur {
			if !now.Before(rec.ExpiresAt) {
				delete(cur, fp)
				continue
			}
			out = append(out, rec)
		}
		return cur, len(cur) > 0
	})
	return out
}

func (m *Memory) Sweep() SweepStats {
	now := m.clock.Now()
	var st SweepStats

	for key, item := range m.blacklist.Items() {
		if exp, ok := item.Object.(time.Time); ok && !now.Before(exp) {
			m.blacklist.Delete(key)
			st.Blacklist++
		}
	}
	// lo que go-cache ya considera vencido en tiempo real
	m.blacklist.DeleteExpired()

	m.refresh.Sweep(func(_ string, cur map[string]RefreshRecord) bool {
		for fp, rec := range cur {
			if !now.Before(rec.ExpiresAt) {
				delete(cur, fp)
				st.Refresh++
			}
		}
		return len(cur) == 0
	})
	return st
}

func (m *Memory) Stats() Stats {
	st := Stats{Backend: "memory", BlacklistEntries: m.blacklist.ItemCount()}
	m.refresh.Range(func(_ string, cur map[string]RefreshRecord) {
		st.Subjects++
		st.RefreshEntries += len(cur)
	})
	return st
}

var _ Registry = (*Memory)(nil)
