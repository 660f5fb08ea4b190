package model

type (
	// Prekey is the public key material one client publishes so that others
	// can establish a session with it without prior interaction. Signature
	// is an Ed25519 signature over SPKPub made with the signing key whose
	// public half is SigPub; ID orders bundles, newest wins.
	Prekey struct {
		ID        int    `json:"id"`
		IKPub     []byte `json:"ik_pub"`
		SPKPub    []byte `json:"spk_pub"`
		SigPub    []byte `json:"sig_pub"`
		Signature []byte `json:"signature"`
	}

	// TopicPrekeys is the recipient roster for one topic. Me holds all of
	// the requesting user's own clients, Recipients everyone else's.
	// A nil Prekey means the server has no key material for that client;
	// an established session may still be able to reach it.
	TopicPrekeys struct {
		Me         map[ClientID]*Prekey `json:"me"`
		Recipients map[ClientID]*Prekey `json:"recipients"`
	}
)

// Roster flattens Me and Recipients into one fan-out target set,
// leaving out the excluded client (normally the sender itself).
func (t TopicPrekeys) Roster(exclude ClientID) map[ClientID]*Prekey {
	roster := make(map[ClientID]*Prekey, len(t.Me)+len(t.Recipients))
	for id, key := range t.Me {
		if id != exclude {
			roster[id] = key
		}
	}
	for id, key := range t.Recipients {
		if id != exclude {
			roster[id] = key
		}
	}
	return roster
}
