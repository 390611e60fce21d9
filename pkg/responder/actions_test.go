package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionsFindsCategoryKeyword(t *testing.T) {
	actions := ParseActions("I can help you create a new ticket for this.")
	require.NotEmpty(t, actions)

	var create *Action
	for i := range actions {
		if actions[i].Type == "create" {
			create = &actions[i]
		}
	}
	require.NotNil(t, create)
	assert.Equal(t, "create", create.Keyword)
}

func TestParseActionsConfidenceBoostedByAffirmativePattern(t *testing.T) {
	actions := ParseActions("I can help you create that ticket.")
	require.NotEmpty(t, actions)
	assert.InDelta(t, 0.8, actions[0].Confidence, 1e-9)
}

func TestParseActionsConfidencePenalisedByUncertainPattern(t *testing.T) {
	actions := ParseActions("I might be able to create that, maybe.")
	require.NotEmpty(t, actions)
	// base 0.5 - 0.2 (might) - 0.2 (maybe) = 0.1
	assert.InDelta(t, 0.1, actions[0].Confidence, 1e-9)
}

func TestParseActionsConfidenceClampedToZeroAndOne(t *testing.T) {
	low := ParseActions("might maybe perhaps could possibly create this")
	require.NotEmpty(t, low)
	assert.Equal(t, 0.0, low[0].Confidence)

	high := ParseActions("i can help, let me, i'll, i will, would you like to create this")
	require.NotEmpty(t, high)
	assert.Equal(t, 1.0, high[0].Confidence)
}

func TestParseActionsAtMostOnePerCategory(t *testing.T) {
	actions := ParseActions("create, add, make, and a new item")
	count := 0
	for _, a := range actions {
		if a.Type == "create" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestParseActionsSortedByConfidenceDescending(t *testing.T) {
	actions := ParseActions("i can help create this, and might also delete that")
	// create, delete, and help (matched inside "i can help")
	require.Len(t, actions, 3)
	assert.GreaterOrEqual(t, actions[0].Confidence, actions[1].Confidence)
}

func TestParseActionsNoKeywordsYieldsNoActions(t *testing.T) {
	assert.Empty(t, ParseActions("the weather is nice today"))
}

func TestParseActionsWindowIsBounded(t *testing.T) {
	reply := "create"
	actions := ParseActions(reply)
	require.NotEmpty(t, actions)
	assert.Equal(t, "create", actions[0].Window)
}
