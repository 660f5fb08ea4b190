package model

type (
	// UserID identifies a user account. One user may own many clients.
	UserID string

	// ClientID identifies a single device of a user. Globally unique.
	ClientID string

	// TopicID identifies a conversation that scopes roster and events.
	TopicID string

	// AssetID identifies an encrypted blob in the asset store.
	AssetID string

	// EventID is allocated by the server and is the idempotency key
	// for event persistence.
	EventID string

	// SessionID identifies a secure session with one peer client.
	SessionID string
)

// SessionIDForClient maps a client to its session. The mapping is 1:1 today;
// we left it here so we can change it once we need something more
// sophisticated (salted, many-to-one). All callers must go through this.
func SessionIDForClient(id ClientID) SessionID {
	return SessionID(id)
}

// ClientIDForSession is the inverse of SessionIDForClient.
func ClientIDForSession(id SessionID) ClientID {
	return ClientID(id)
}
