package hub

import "sync"

type presenceShard struct {
	sync.RWMutex
	users map[string]*Client
}

// Presence maps each online user to the connection that registered last.
type Presence struct {
	shards [shardCount]*presenceShard
}

func NewPresence() *Presence {
	p := &Presence{}
	for i := range p.shards {
		p.shards[i] = &presenceShard{users: make(map[string]*Client)}
	}
	return p
}

func (p *Presence) shard(userID string) *presenceShard {
	return p.shards[getShard(userID)]
}

// Register points userID at c and returns the entry it replaced, if any.
func (p *Presence) Register(userID string, c *Client) *Client {
	s := p.shard(userID)
	s.Lock()
	defer s.Unlock()

	prev := s.users[userID]
	s.users[userID] = c
	return prev
}

// Remove deletes the entry for userID only if it still points at c, so a
// closing connection never evicts the one that replaced it.
func (p *Presence) Remove(userID string, c *Client) bool {
	s := p.shard(userID)
	s.Lock()
	defer s.Unlock()

	if cur, ok := s.users[userID]; ok && cur == c {
		delete(s.users, userID)
		return true
	}
	return false
}

func (p *Presence) Lookup(userID string) (*Client, bool) {
	s := p.shard(userID)
	s.RLock()
	defer s.RUnlock()

	c, ok := s.users[userID]
	return c, ok
}

func (p *Presence) IsOnline(userID string) bool {
	_, ok := p.Lookup(userID)
	return ok
}

func (p *Presence) Len() int {
	n := 0
	for _, s := range p.shards {
		s.RLock()
		n += len(s.users)
		s.RUnlock()
	}
	return n
}

// Snapshot returns the registered clients at roughly one point in time.
func (p *Presence) Snapshot() []*Client {
	var out []*Client
	for _, s := range p.shards {
		s.RLock()
		for _, c := range s.users {
			out = append(out, c)
		}
		s.RUnlock()
	}
	return out
}
