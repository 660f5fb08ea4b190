package x3dh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"otr_messaging/internal/cryptographic/dh"
	"otr_messaging/internal/model"
	"otr_messaging/internal/protocol/x3dh"
)

func keyPair(t *testing.T) ([]byte, []byte) {
	t.Helper()
	priv, pub, err := dh.NewX25519KeyPair()
	require.NoError(t, err)
	return priv[:], pub[:]
}

func TestSenderAndReceiverAgree(t *testing.T) {
	ikPrivA, ikPubA := keyPair(t)
	ekPrivA, ekPubA := keyPair(t)
	ikPrivB, ikPubB := keyPair(t)
	spkPrivB, spkPubB := keyPair(t)

	sender := &x3dh.X3DHSender{}
	skA, err := sender.GenerateShareKey(&model.SenderKeyBundle{
		IKPrivA: ikPrivA,
		EKPrivA: ekPrivA,
		IKPubB:  ikPubB,
		SPKPubB: spkPubB,
	})
	require.NoError(t, err)
	require.Len(t, skA, 32)

	receiver := &x3dh.X3DHReceiver{}
	skB, err := receiver.GenerateShareKey(&model.ReceiverKeyBundle{
		IKPubA:   ikPubA,
		EKPubA:   ekPubA,
		IKPrivB:  ikPrivB,
		SPKPrivB: spkPrivB,
	})
	require.NoError(t, err)

	require.Equal(t, skA, skB)
}

func TestDifferentEphemeralKeysDiverge(t *testing.T) {
	ikPrivA, _ := keyPair(t)
	ekPrivA1, _ := keyPair(t)
	ekPrivA2, _ := keyPair(t)
	_, ikPubB := keyPair(t)
	_, spkPubB := keyPair(t)

	sender := &x3dh.X3DHSender{}
	sk1, err := sender.GenerateShareKey(&model.SenderKeyBundle{
		IKPrivA: ikPrivA, EKPrivA: ekPrivA1, IKPubB: ikPubB, SPKPubB: spkPubB,
	})
	require.NoError(t, err)
	sk2, err := sender.GenerateShareKey(&model.SenderKeyBundle{
		IKPrivA: ikPrivA, EKPrivA: ekPrivA2, IKPubB: ikPubB, SPKPubB: spkPubB,
	})
	require.NoError(t, err)

	require.NotEqual(t, sk1, sk2)
}
