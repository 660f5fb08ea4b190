package model

type (
	// EncryptedAsset is the output of asset encryption. CipherText is
	// IV (16 bytes) followed by the AES-CBC ciphertext; SHA256 is computed
	// over the whole CipherText, IV included.
	EncryptedAsset struct {
		CipherText []byte `json:"cipherText"`
		Key        []byte `json:"key"`
		SHA256     []byte `json:"sha256"`
	}

	// AssetDecryptionKey is the durable index entry that lets an asset be
	// decrypted long after the enclosing event was processed.
	AssetDecryptionKey struct {
		AssetID AssetID `json:"assetId"`
		Key     []byte  `json:"key"`
		SHA256  []byte  `json:"sha256"`
	}
)
