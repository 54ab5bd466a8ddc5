package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"market-agent/src/interfaces"
	"market-agent/src/models"
)

// KeywordReasoner is a local rule-based reasoner. It needs no network and
// always answers the same way for the same transcript.
type KeywordReasoner struct{}

var _ interfaces.IReasoner = (*KeywordReasoner)(nil)

var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}(?:\.[A-Z]{1,2})?\b`)

// Upper-case words that are never tickers
var stopWords = map[string]bool{
	"I": true, "A": true, "ME": true, "MY": true, "THE": true, "AND": true,
	"OR": true, "OF": true, "FOR": true, "SHOW": true, "PRICE": true, "STOCK": true,
	"PLEASE": true, "WHAT": true, "IS": true, "HOW": true, "USD": true, "ETF": true,
}

func NewKeywordReasoner() *KeywordReasoner {
	return &KeywordReasoner{}
}

func (r *KeywordReasoner) Name() string {
	return "keyword"
}

// -----------------------------------------------------------------------------

func (r *KeywordReasoner) Next(_ context.Context, transcript []models.MTurn, capabilities []models.MCapabilityDecl) (*models.MDecision, error) {
	if len(transcript) == 0 {
		return nil, fmt.Errorf("empty transcript")
	}

	last := transcript[len(transcript)-1]
	if last.Role == models.RoleTool {
		return &models.MDecision{Final: last.Text}, nil
	}

	request := transcript[0].Text
	ticker := ExtractTicker(request)
	if ticker == "" || len(capabilities) == 0 {
		return &models.MDecision{Final: fmt.Sprintf("I could not find a ticker symbol in %q.", request)}, nil
	}

	args, err := json.Marshal(map[string]string{"ticker": ticker})
	if err != nil {
		return nil, err
	}
	return &models.MDecision{
		Invocations: []models.MInvocation{{
			ID:        fmt.Sprintf("call_%d", len(transcript)),
			Name:      capabilities[0].Name,
			Arguments: args,
		}},
	}, nil
}

// -----------------------------------------------------------------------------

// ExtractTicker returns the first ticker-looking word of text, or ""
func ExtractTicker(text string) string {
	for _, m := range tickerPattern.FindAllString(text, -1) {
		if !stopWords[strings.ToUpper(m)] {
			return m
		}
	}
	return ""
}
