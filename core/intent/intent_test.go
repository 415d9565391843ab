package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authoritycore/core/types"
)

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse(Record{Resource: "api:openai:gpt-4"})
	require.Error(t, err)

	_, err = Parse(Record{Action: "api_call"})
	require.Error(t, err)
}

func TestHashStableAcrossParameterKeyOrder(t *testing.T) {
	a, err := Parse(Record{
		Action:   "api_call",
		Resource: "api:openai:gpt-4",
		Parameters: types.ValueMap{
			"temperature": 0.7,
			"max_tokens":  100,
		},
	})
	require.NoError(t, err)

	b, err := Parse(Record{
		Action:   "api_call",
		Resource: "api:openai:gpt-4",
		Parameters: types.ValueMap{
			"max_tokens":  100,
			"temperature": 0.7,
		},
	})
	require.NoError(t, err)

	hashA, err := a.Hash()
	require.NoError(t, err)
	hashB, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestHashExcludesContext(t *testing.T) {
	a, err := Parse(Record{Action: "api_call", Resource: "api:openai:gpt-4", Context: types.ValueMap{"trace_id": "abc"}})
	require.NoError(t, err)
	b, err := Parse(Record{Action: "api_call", Resource: "api:openai:gpt-4", Context: types.ValueMap{"trace_id": "xyz"}})
	require.NoError(t, err)

	hashA, err := a.Hash()
	require.NoError(t, err)
	hashB, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestMatchesMandateNarrowsOnly(t *testing.T) {
	i, err := Parse(Record{Action: "api_call", Resource: "api:openai:gpt-4"})
	require.NoError(t, err)

	assert.True(t, MatchesMandate(i, MandateScope{
		ActionScope:   []string{"api_call"},
		ResourceScope: []string{"api:openai:*"},
	}))
	assert.False(t, MatchesMandate(i, MandateScope{
		ActionScope:   []string{"read"},
		ResourceScope: []string{"api:openai:*"},
	}))
	assert.False(t, MatchesMandate(i, MandateScope{
		ActionScope:   []string{"api_call"},
		ResourceScope: []string{"api:anthropic:*"},
	}))
}
