package model

type (
	// X3DHHandshake rides on the first message of a session. IKPub lets the
	// receiver run its side of X3DH without a directory lookup.
	X3DHHandshake struct {
		IKPub []byte `cbor:"ikPub"`
		EKPub []byte `cbor:"ekPub"`
	}

	SenderKeyBundle struct {
		IKPrivA []byte
		EKPrivA []byte

		IKPubB  []byte
		SPKPubB []byte
		OTKPubB []byte
	}

	ReceiverKeyBundle struct {
		IKPubA []byte
		EKPubA []byte

		IKPrivB  []byte
		SPKPrivB []byte
		OTKPrivB []byte
	}
)
