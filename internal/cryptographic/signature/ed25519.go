package signature

import (
	"crypto/ed25519"
	"crypto/rand"
)

func NewEd25519Keypair() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func ED25519Sign(privKeyBytes []byte, message []byte) []byte {
	privKey := ed25519.PrivateKey(privKeyBytes)
	return ed25519.Sign(privKey, message)
}

// ED25519PublicKey extracts the public half from a stored private key.
func ED25519PublicKey(privKeyBytes []byte) []byte {
	privKey := ed25519.PrivateKey(privKeyBytes)
	return privKey.Public().(ed25519.PublicKey)
}

func ED25519Verify(pubKeyBytes []byte, message []byte, signature []byte) bool {
	// ed25519.Verify panics on a wrong-sized key, which a remote peer controls.
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return false
	}
	pubKey := ed25519.PublicKey(pubKeyBytes)
	return ed25519.Verify(pubKey, message, signature)
}
