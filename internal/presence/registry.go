// Package presence tracks which live connection currently speaks for an
// access code. Bindings live only as long as the process.
package presence

import (
	"sync"

	"relay/internal/event"
)

// Conn is a live connection that can receive pushed events. Implementations
// must be comparable (pointer types) since they key the reverse index.
type Conn interface {
	Deliver(ev event.Event) error
}

type Registry struct {
	mu     sync.Mutex
	byCode map[string]Conn
	byConn map[Conn]string
}

func NewRegistry() *Registry {
	return &Registry{
		byCode: make(map[string]Conn),
		byConn: make(map[Conn]string),
	}
}

// Bind makes conn the binding for code. A previous connection for code loses
// its binding, and conn drops any binding it held under another code. It
// returns the connection that was displaced, if any.
func (r *Registry) Bind(code string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevCode, ok := r.byConn[conn]; ok && prevCode != code {
		delete(r.byCode, prevCode)
	}
	displaced, had := r.byCode[code]
	if had && displaced != conn {
		delete(r.byConn, displaced)
	} else {
		displaced = nil
	}
	r.byCode[code] = conn
	r.byConn[conn] = code
	return displaced
}

func (r *Registry) Lookup(code string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byCode[code]
	return conn, ok
}

// CodeOf returns the code conn is currently bound to.
func (r *Registry) CodeOf(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byConn[conn]
	return code, ok
}

// Unbind removes the binding held by conn. A newer binding for the same code
// made by another connection is left alone.
func (r *Registry) Unbind(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	if r.byCode[code] == conn {
		delete(r.byCode, code)
	}
	return code, true
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCode)
}
