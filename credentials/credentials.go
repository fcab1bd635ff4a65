// Package credentials holds the last known-good interactive login pair in process memory.
// The pair is used for silent re-login and is never written to durable storage, so the
// capability ends with the process or with the session.
package credentials

import "sync"

// Credentials is an email/password pair captured after a successful interactive login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Cache stores at most one Credentials value.
type Cache interface {
	// Save replaces the cached pair.
	Save(email, password string)
	// Read returns the cached pair, ok is false if nothing has been saved.
	Read() (Credentials, bool)
	// Clear drops the cached pair.
	Clear()
}

var _ Cache = (*MemoryCache)(nil)

// MemoryCache is the in-process Cache implementation.
type MemoryCache struct {
	creds *Credentials
	lock  sync.RWMutex
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Save(email, password string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.creds = &Credentials{Email: email, Password: password}
}

func (c *MemoryCache) Read() (Credentials, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.creds == nil {
		return Credentials{}, false
	}
	return *c.creds, true
}

func (c *MemoryCache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.creds = nil
}
