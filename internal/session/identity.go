package session

import (
	"encoding/json"
	"fmt"
	"os"

	"otr_messaging/internal/cryptographic/dh"
	"otr_messaging/internal/cryptographic/signature"
	"otr_messaging/internal/model"
)

// NewIdentity generates fresh long-term key material for a client device:
// an X25519 identity key, an X25519 signed prekey and an Ed25519 signing key.
func NewIdentity(userID model.UserID, clientID model.ClientID, name string) (*model.User, error) {
	ikPriv, _, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}

	spkPriv, _, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}

	_, sigPriv, err := signature.NewEd25519Keypair()
	if err != nil {
		return nil, err
	}

	return &model.User{
		UserID:   userID,
		ClientID: clientID,
		Name:     name,
		IKPriv:   ikPriv[:],
		SPKPriv:  spkPriv[:],
		SigPriv:  sigPriv,
	}, nil
}

// identityFile is the on-disk identity layout. model.User keeps its private
// keys out of JSON on purpose, so the file gets its own shape.
type identityFile struct {
	UserID   model.UserID   `json:"userId"`
	ClientID model.ClientID `json:"clientId"`
	Name     string         `json:"name"`
	IKPriv   []byte         `json:"ikPriv"`
	SPKPriv  []byte         `json:"spkPriv"`
	SigPriv  []byte         `json:"sigPriv"`
}

// LoadOrCreateIdentity reads the identity file at path, generating and
// persisting a fresh identity when none exists yet.
func LoadOrCreateIdentity(path string, userID model.UserID, clientID model.ClientID, name string) (*model.User, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var file identityFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse identity %s: %w", path, err)
		}
		return &model.User{
			UserID:   file.UserID,
			ClientID: file.ClientID,
			Name:     file.Name,
			IKPriv:   file.IKPriv,
			SPKPriv:  file.SPKPriv,
			SigPriv:  file.SigPriv,
		}, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	user, err := NewIdentity(userID, clientID, name)
	if err != nil {
		return nil, err
	}
	data, err = json.Marshal(identityFile{
		UserID:   user.UserID,
		ClientID: user.ClientID,
		Name:     user.Name,
		IKPriv:   user.IKPriv,
		SPKPriv:  user.SPKPriv,
		SigPriv:  user.SigPriv,
	})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return user, nil
}

// publicKey derives the X25519 public key for a stored private key.
func publicKey(priv []byte) ([]byte, error) {
	key, err := dh.ConvertToECDHFormat(priv)
	if err != nil {
		return nil, err
	}
	return key.PublicKey().Bytes(), nil
}
