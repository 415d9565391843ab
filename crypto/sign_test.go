package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)

	payload, err := CanonicalJSON(map[string]interface{}{
		"action":   "api_call",
		"resource": "api:openai:gpt-4",
	})
	require.NoError(t, err)

	sig, err := Sign(payload, priv)
	require.NoError(t, err)
	require.True(t, Verify(payload, sig, priv.PubKey()))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)

	payload, err := CanonicalJSON(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	sig, err := Sign(payload, priv)
	require.NoError(t, err)

	tampered, err := CanonicalJSON(map[string]interface{}{"a": 2})
	require.NoError(t, err)
	require.False(t, Verify(tampered, sig, priv.PubKey()))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)
	other, err := GeneratePrivateKey()
	require.NoError(t, err)

	payload, err := CanonicalJSON(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	sig, err := Sign(payload, priv)
	require.NoError(t, err)

	require.False(t, Verify(payload, sig, other.PubKey()))
}

func TestCanonicalJSONSortsKeysAtEveryDepth(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{"z": 1, "y": 2},
	})
	require.NoError(t, err)
	require.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(a))
}

func TestPEMRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)

	privPEM, err := priv.EncodePEM()
	require.NoError(t, err)
	pubPEM, err := priv.PubKey().EncodePEM()
	require.NoError(t, err)

	decodedPriv, err := PrivateKeyFromPEM(privPEM)
	require.NoError(t, err)
	decodedPub, err := PublicKeyFromPEM(pubPEM)
	require.NoError(t, err)

	require.True(t, decodedPub.MatchesPrivateKey(decodedPriv))
}
