package reasoner

import (
	"context"
	"testing"

	"market-agent/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decls = []models.MCapabilityDecl{{Name: "fetchHistoricalData"}}

func TestExtractTicker(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("AAPL", ExtractTicker("show me AAPL"))
	assert.Equal("VOD.L", ExtractTicker("What is VOD.L doing?"))
	assert.Equal("MSFT", ExtractTicker("SHOW ME THE PRICE OF MSFT"))
	assert.Equal("", ExtractTicker("how is the market today"))
}

func TestKeywordInvokesThenAnswers(t *testing.T) {
	r := NewKeywordReasoner()
	transcript := []models.MTurn{{Role: models.RoleUser, Text: "show me AAPL"}}

	first, err := r.Next(context.Background(), transcript, decls)
	require.NoError(t, err)
	require.Len(t, first.Invocations, 1)
	assert.Equal(t, "fetchHistoricalData", first.Invocations[0].Name)
	assert.JSONEq(t, `{"ticker":"AAPL"}`, string(first.Invocations[0].Arguments))

	transcript = append(transcript,
		models.MTurn{Role: models.RoleAssistant, Invocations: first.Invocations},
		models.MTurn{Role: models.RoleTool, Text: `{"date":"2024-01-08","value":185.56}`, CallID: first.Invocations[0].ID},
	)
	second, err := r.Next(context.Background(), transcript, decls)
	require.NoError(t, err)
	assert.Empty(t, second.Invocations)
	assert.Equal(t, `{"date":"2024-01-08","value":185.56}`, second.Final)
}

func TestKeywordWithoutTicker(t *testing.T) {
	d, err := NewKeywordReasoner().Next(context.Background(), []models.MTurn{{Role: models.RoleUser, Text: "hello there"}}, decls)
	require.NoError(t, err)
	assert.Empty(t, d.Invocations)
	assert.Contains(t, d.Final, "could not find a ticker")
}
