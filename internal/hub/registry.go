package hub

import "sort"

// registry is the bidirectional identity <-> connection index. At most one
// connection per identity and one identity per connection; a later binding
// supersedes an earlier one in both directions.
type registry struct {
	byIdentity map[string]string // identity -> connection id
	byConn     map[string]string // connection id -> identity
}

func newRegistry() *registry {
	return &registry{
		byIdentity: make(map[string]string),
		byConn:     make(map[string]string),
	}
}

// register binds identity to connID. It returns whether the registry changed
// and, if the identity was previously bound to a different connection, that
// superseded connection id. Re-registering an existing binding is a no-op.
func (r *registry) register(identity, connID string) (changed bool, superseded string) {
	if r.byIdentity[identity] == connID {
		return false, ""
	}

	// The identity may move off an older connection, and the connection may
	// drop an older identity. Clear both stale reverse entries.
	if old, ok := r.byIdentity[identity]; ok {
		superseded = old
		delete(r.byConn, old)
	}
	if oldIdentity, ok := r.byConn[connID]; ok {
		delete(r.byIdentity, oldIdentity)
	}

	r.byIdentity[identity] = connID
	r.byConn[connID] = identity
	return true, superseded
}

// unregisterConn removes the binding for connID, but only if it is still the
// current connection for its identity. A binding already superseded by a
// newer connection is left untouched. Returns whether the registry changed.
func (r *registry) unregisterConn(connID string) bool {
	identity, ok := r.byConn[connID]
	if !ok {
		return false
	}
	delete(r.byConn, connID)

	if r.byIdentity[identity] != connID {
		return false
	}
	delete(r.byIdentity, identity)
	return true
}

// lookup returns the live connection id for an identity.
func (r *registry) lookup(identity string) (string, bool) {
	connID, ok := r.byIdentity[identity]
	return connID, ok
}

// identityOf returns the identity bound to a connection, or "" if the
// connection never registered.
func (r *registry) identityOf(connID string) string {
	return r.byConn[connID]
}

// identities returns the sorted list of online identities.
func (r *registry) identities() []string {
	ids := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		ids = append(ids, identity)
	}
	sort.Strings(ids)
	return ids
}
