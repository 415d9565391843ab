package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	assert.True(t, Matches("api:openai:gpt-4", "api:openai:*"))
	assert.False(t, Matches("api:anthropic:claude", "api:openai:*"))
	assert.True(t, Matches("api:openai:gpt-4", "api:*:gpt-4"))
	assert.False(t, Matches("api:openai:gpt-3", "api:*:gpt-4"))
	assert.True(t, Matches("database:users", "database:users"))
	assert.False(t, Matches("database:users", "database:accounts"))
	assert.True(t, Matches("anything", "*"))
}

func TestIsSubsetWildcardNarrowing(t *testing.T) {
	assert.True(t, IsSubset([]string{"api:openai:*"}, []string{"api:*"}))
	assert.False(t, IsSubset([]string{"api:*"}, []string{"api:openai:*"}))
	assert.True(t, IsSubset([]string{"api:openai:gpt-4"}, []string{"api:*"}))
	assert.False(t, IsSubset([]string{"database:*"}, []string{"api:*"}))
}

func TestIsSubsetExactAndEmpty(t *testing.T) {
	assert.True(t, IsSubset([]string{"api:openai:gpt-4"}, []string{"api:openai:gpt-4"}))
	assert.True(t, IsSubset(nil, []string{"api:*"}))
}

func TestIsSubsetMultiWildcardErrsToRefusal(t *testing.T) {
	// child's wildcard reaches further left than the parent's anchor allows.
	assert.False(t, IsSubset([]string{"*:openai:*"}, []string{"api:*"}))
}

func TestActionSubset(t *testing.T) {
	assert.True(t, ActionSubset([]string{"api_call"}, []string{"api_call", "read"}))
	assert.False(t, ActionSubset([]string{"database:delete"}, []string{"api_call", "read"}))
}
