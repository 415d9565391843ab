package principal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authoritycore/crypto"
)

func TestRegisterRejectsMismatchedKeys(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	_, err = Register("agent-1", TypeAgent, "team-a", other.PubKey(), priv)
	assert.Error(t, err)
}

func TestRegisterHappyPath(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	p, err := Register("agent-1", TypeAgent, "team-a", priv.PubKey(), priv)
	require.NoError(t, err)
	assert.NotEmpty(t, p.PrivateKeyPEM)

	loadedPriv, err := p.PrivateKey()
	require.NoError(t, err)
	loadedPub, err := p.PublicKey()
	require.NoError(t, err)
	assert.True(t, loadedPub.MatchesPrivateKey(loadedPriv))
}

func TestNewPolicyRejectsEmptyScopes(t *testing.T) {
	_, err := NewPolicy(uuid.New(), 3600, nil, []string{"api_call"}, true, 2, uuid.New())
	assert.Error(t, err)

	_, err = NewPolicy(uuid.New(), 3600, []string{"api:*"}, nil, true, 2, uuid.New())
	assert.Error(t, err)
}

type fakeStore struct {
	policy *Policy
	calls  int
}

func (f *fakeStore) GetActivePolicy(principalID uuid.UUID) (*Policy, bool, error) {
	f.calls++
	if f.policy == nil {
		return nil, false, nil
	}
	return f.policy, true, nil
}

func TestPolicyCacheServesFromCacheUntilInvalidated(t *testing.T) {
	principalID := uuid.New()
	policy := &Policy{PolicyID: uuid.New(), PrincipalID: principalID, Active: true}
	store := &fakeStore{policy: policy}
	cache := NewPolicyCache(store, time.Minute)

	_, _, err := cache.GetActivePolicy(principalID)
	require.NoError(t, err)
	_, _, err = cache.GetActivePolicy(principalID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)

	cache.Invalidate(principalID)
	_, _, err = cache.GetActivePolicy(principalID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}
