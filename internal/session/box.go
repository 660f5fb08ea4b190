package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"otr_messaging/internal/cryptographic/dh"
	"otr_messaging/internal/cryptographic/signature"
	"otr_messaging/internal/model"
	"otr_messaging/internal/protocol/doubleratchet"
	"otr_messaging/internal/protocol/x3dh"
	"otr_messaging/internal/utils/log"
)

type (
	// State is one persisted session. Handshake stays attached to outgoing
	// messages until the peer has demonstrably established its side, so a
	// dropped first message does not strand the session.
	State struct {
		Handshake *model.X3DHHandshake        `json:"handshake,omitempty"`
		Ratchet   *doubleratchet.RatchetState `json:"ratchet"`
	}

	// Box implements Cipher on top of X3DH session establishment and the
	// Double Ratchet, with session state kept in a StateStore.
	//
	// Decrypt and DeleteSession for the same peer mutate the same state, so
	// Box serializes all operations per session with a mutex.
	Box struct {
		me     *model.User
		states StateStore

		mu       sync.Mutex
		sessions map[model.SessionID]*sync.Mutex

		dispatchMu     sync.Mutex
		prekeyDispatch func([]model.Prekey)

		prekeyMu sync.Mutex
		prekeyID int
	}
)

func NewBox(me *model.User, states StateStore) *Box {
	return &Box{
		me:       me,
		states:   states,
		sessions: make(map[model.SessionID]*sync.Mutex),
	}
}

var _ Cipher = (*Box)(nil)

// Prekey builds this client's publishable prekey bundle, with the signed
// prekey authenticated by the Ed25519 signing key.
func (b *Box) Prekey() (*model.Prekey, error) {
	ikPub, err := publicKey(b.me.IKPriv)
	if err != nil {
		return nil, err
	}
	spkPub, err := publicKey(b.me.SPKPriv)
	if err != nil {
		return nil, err
	}
	b.prekeyMu.Lock()
	b.prekeyID++
	id := b.prekeyID
	b.prekeyMu.Unlock()

	return &model.Prekey{
		ID:        id,
		IKPub:     ikPub,
		SPKPub:    spkPub,
		SigPub:    signature.ED25519PublicKey(b.me.SigPriv),
		Signature: signature.ED25519Sign(b.me.SigPriv, spkPub),
	}, nil
}

// RegisterPrekeysDispatch registers the single callback that receives fresh
// prekey bundles for publication. It fires immediately with the current
// bundle so a newly constructed client announces itself.
func (b *Box) RegisterPrekeysDispatch(dispatch func([]model.Prekey)) error {
	b.dispatchMu.Lock()
	b.prekeyDispatch = dispatch
	b.dispatchMu.Unlock()

	prekey, err := b.Prekey()
	if err != nil {
		return err
	}
	dispatch([]model.Prekey{*prekey})
	return nil
}

func (b *Box) Encrypt(ctx context.Context, id model.SessionID, plaintext []byte, prekey *model.Prekey) ([]byte, error) {
	lock := b.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := b.states.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		if prekey == nil {
			return nil, ErrNoSession
		}
		st, err = b.initiateSession(prekey)
		if err != nil {
			return nil, err
		}
	}

	hdr, ct, err := st.Ratchet.Send(plaintext)
	if err != nil {
		return nil, fmt.Errorf("ratchet send: %w", err)
	}

	payload, err := cbor.Marshal(&model.SessionMessage{
		Handshake:  st.Handshake,
		Header:     *hdr,
		Ciphertext: ct,
	})
	if err != nil {
		return nil, err
	}

	if err := b.states.Save(ctx, id, st); err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *Box) Decrypt(ctx context.Context, id model.SessionID, payload []byte) ([]byte, error) {
	lock := b.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	var msg model.SessionMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: undecodable payload", ErrDecryption)
	}

	st, err := b.states.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		if msg.Handshake == nil {
			return nil, fmt.Errorf("%w: first message carries no handshake", ErrDecryption)
		}
		st, err = b.acceptSession(msg.Handshake)
		if err != nil {
			return nil, err
		}
	}

	plain, err := st.Ratchet.Receive(msg.Header, msg.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	// Hearing from the peer proves its side of the session exists.
	st.Handshake = nil
	if err := b.states.Save(ctx, id, st); err != nil {
		return nil, err
	}
	return plain, nil
}

func (b *Box) DeleteSession(ctx context.Context, id model.SessionID) error {
	lock := b.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	log.Debug("deleting session", zap.String("session", string(id)))
	return b.states.Delete(ctx, id)
}

// initiateSession runs the sender side of X3DH against a peer prekey bundle.
// The bundle's signed prekey must verify against its signing key before any
// session state is derived from it.
func (b *Box) initiateSession(prekey *model.Prekey) (*State, error) {
	if !signature.ED25519Verify(prekey.SigPub, prekey.SPKPub, prekey.Signature) {
		return nil, fmt.Errorf("%w: signed prekey does not verify", ErrInvalidPrekey)
	}

	ekPriv, ekPub, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}

	sender := &x3dh.X3DHSender{}
	sk, err := sender.GenerateShareKey(&model.SenderKeyBundle{
		IKPrivA: b.me.IKPriv,
		EKPrivA: ekPriv[:],
		IKPubB:  prekey.IKPub,
		SPKPubB: prekey.SPKPub,
		OTKPubB: nil,
	})
	if err != nil {
		return nil, err
	}

	ikPub, err := publicKey(b.me.IKPriv)
	if err != nil {
		return nil, err
	}

	return &State{
		Handshake: &model.X3DHHandshake{IKPub: ikPub, EKPub: ekPub[:]},
		Ratchet:   doubleratchet.NewState(sk, [32]byte{}, [32]byte{}, [32]byte(prekey.SPKPub)),
	}, nil
}

// acceptSession runs the receiver side of X3DH from an incoming handshake.
func (b *Box) acceptSession(handshake *model.X3DHHandshake) (*State, error) {
	recv := &x3dh.X3DHReceiver{}
	sk, err := recv.GenerateShareKey(&model.ReceiverKeyBundle{
		IKPubA:   handshake.IKPub,
		EKPubA:   handshake.EKPub,
		IKPrivB:  b.me.IKPriv,
		SPKPrivB: b.me.SPKPriv,
		OTKPrivB: nil,
	})
	if err != nil {
		return nil, err
	}

	spkPub, err := publicKey(b.me.SPKPriv)
	if err != nil {
		return nil, err
	}

	return &State{
		Ratchet: doubleratchet.NewState(sk, [32]byte(b.me.SPKPriv), [32]byte(spkPub), [32]byte{}),
	}, nil
}

func (b *Box) sessionLock(id model.SessionID) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.sessions[id]
	if !ok {
		lock = &sync.Mutex{}
		b.sessions[id] = lock
	}
	return lock
}
