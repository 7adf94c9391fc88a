package session

import (
	"errors"
	"sync/atomic"
)

var (
	ErrIdentityAlreadySet = errors.New("session: identity already set")
	ErrEmptyIdentity      = errors.New("session: identity must not be empty")
)

// Identity holds the id the hub assigns on registration. It is written once
// and read concurrently.
type Identity struct {
	id atomic.Pointer[string]
}

// Set stores id. A second call fails and keeps the first value.
func (i *Identity) Set(id string) error {
	if id == "" {
		return ErrEmptyIdentity
	}
	if !i.id.CompareAndSwap(nil, &id) {
		return ErrIdentityAlreadySet
	}
	return nil
}

func (i *Identity) Get() (string, bool) {
	p := i.id.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// MustGet returns the id and panics when it has not been set.
func (i *Identity) MustGet() string {
	id, ok := i.Get()
	if !ok {
		panic("session: identity not set")
	}
	return id
}
