package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"trivia-service/internal/app"
)

type session struct {
	member   app.Member
	channel  string
	perms    map[string]struct{}
	joinedAt time.Time
}

// Presence is the in-memory presence store used when Redis is not
// configured. It implements both the audience provider and the join
// registrar consumed by the transport.
type Presence struct {
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	order    []string
}

func NewPresence() *Presence {
	return &Presence{
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// NewPresenceWithClock is test-only for deterministic join timestamps.
func NewPresenceWithClock(now func() time.Time) *Presence {
	p := NewPresence()
	p.now = now
	return p
}

// MarkJoin registers or refreshes a participant. Rejoining keeps the
// original join timestamp only if the participant never left.
func (p *Presence) MarkJoin(_ context.Context, member app.Member, channel string, perms []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	permSet := make(map[string]struct{}, len(perms))
	for _, perm := range perms {
		permSet[perm] = struct{}{}
	}

	if existing, ok := p.sessions[member.ID]; ok {
		existing.member.Name = member.Name
		existing.channel = channel
		existing.perms = permSet
		return
	}

	p.sessions[member.ID] = &session{
		member:   member,
		channel:  channel,
		perms:    permSet,
		joinedAt: p.now(),
	}
	p.order = append(p.order, member.ID)
}

func (p *Presence) MarkLeave(_ context.Context, playerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[playerID]; !ok {
		return
	}
	delete(p.sessions, playerID)
	for i, id := range p.order {
		if id == playerID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Presence) Audience(_ context.Context, filter app.ScopeFilter) []app.Member {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var members []app.Member
	for _, id := range p.order {
		s := p.sessions[id]
		if !matches(s, filter) {
			continue
		}
		members = append(members, s.member)
	}
	return members
}

func (p *Presence) Resolve(_ context.Context, ids []string) []app.Member {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var members []app.Member
	for _, id := range ids {
		if s, ok := p.sessions[id]; ok {
			members = append(members, s.member)
		}
	}
	return members
}

// ChannelOf returns the channel a present participant joined with.
func (p *Presence) ChannelOf(_ context.Context, playerID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[playerID]
	if !ok {
		return "", false
	}
	return s.channel, true
}

func (p *Presence) JoinedAt(_ context.Context, playerID string) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[playerID]
	if !ok {
		return time.Time{}, false
	}
	return s.joinedAt, true
}

func matches(s *session, filter app.ScopeFilter) bool {
	switch filter.Scope {
	case app.ScopeChannel:
		return filter.Channel == "" || strings.EqualFold(s.channel, filter.Channel)
	case app.ScopePermission:
		if filter.Permission == "" {
			return true
		}
		_, ok := s.perms[filter.Permission]
		return ok
	default:
		return true
	}
}
