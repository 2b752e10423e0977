/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package registry implements the process-wide, data-driven name-to-
// constructor tables used throughout mailkit: the header-field factory, the
// parameter factory and the net service factory all share this same shape
// (register once at init time, look up by name forever after).
package registry

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicate is returned by Register when the name is already taken.
	ErrDuplicate = errors.New("registry: name already registered")
	// ErrUnknown is returned by New and Alias when the name has no constructor.
	ErrUnknown = errors.New("registry: no constructor for name")
)

// Registry is a concurrency-safe name -> constructor table for a single type
// T. It is populated once, before any parsing or dialing happens, and is
// treated as read-only afterwards; the mutex only guards the admittedly rare
// case of a caller registering a custom field/parameter/service type at
// runtime.
type Registry[T any] struct {
	mu      sync.RWMutex
	ctors   map[string]func(raw string) (T, error)
	aliases map[string]string
}

func New[T any]() *Registry[T] {
	return &Registry[T]{
		ctors:   make(map[string]func(raw string) (T, error)),
		aliases: make(map[string]string),
	}
}

// Register adds a constructor under the given lower-cased name. Registering
// the same name twice is an error: the registry is meant to be populated
// once at initialization, not mutated piecemeal.
func (r *Registry[T]) Register(name string, ctor func(raw string) (T, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ctors[name]; ok {
		return ErrDuplicate
	}
	r.ctors[name] = ctor
	return nil
}

// Alias makes `alias` resolve to the same constructor as `name`.
func (r *Registry[T]) Alias(alias, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ctors[name]; !ok {
		return ErrUnknown
	}
	r.aliases[alias] = name
	return nil
}

// Lookup returns the constructor registered for name, resolving aliases
// first. ok is false if nothing is registered.
func (r *Registry[T]) Lookup(name string) (ctor func(raw string) (T, error), ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if real, isAlias := r.aliases[name]; isAlias {
		name = real
	}
	ctor, ok = r.ctors[name]
	return
}

// New constructs a new T using the constructor registered for name.
func (r *Registry[T]) New(name, raw string) (T, error) {
	ctor, ok := r.Lookup(name)
	if !ok {
		var zero T
		return zero, ErrUnknown
	}
	return ctor(raw)
}

// Names returns every registered (non-alias) name, for diagnostics.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	return names
}
