package sim

import (
	"context"
	"log"
	"time"

	"simulearn/internal/jsonutil"
	"simulearn/internal/llmclient"
)

const defaultTurnTimeout = 12 * time.Second

// turnGenerator adapts an LLMClient to the TurnGenerator contract: it
// imposes the per-call deadline, strips wrapper formatting from the payload
// and substitutes a stable fallback turn when the payload cannot be parsed.
type turnGenerator struct {
	llm     llmclient.LLMClient
	timeout time.Duration
}

// NewTurnGenerator wraps llm with the turn contract. timeout <= 0 selects
// the default deadline.
func NewTurnGenerator(llm llmclient.LLMClient, timeout time.Duration) TurnGenerator {
	if timeout <= 0 {
		timeout = defaultTurnTimeout
	}
	return &turnGenerator{llm: llm, timeout: timeout}
}

func (g *turnGenerator) Generate(ctx context.Context, req TurnRequest) (TurnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.llm.GenerateJSON(ctx, turnPrompt, turnInput(req))
	if err != nil {
		return TurnResult{}, err
	}
	var res TurnResult
	if err := jsonutil.UnmarshalRaw(raw, &res); err != nil {
		log.Printf("turngen: malformed payload (%d bytes): %v", len(raw), err)
		return fallbackTurn(), nil
	}
	return normalizeTurn(res), nil
}

// normalizeTurn enforces the contract invariants on a parsed result:
// a description and isEnded are always present, options are only meaningful
// while the run continues, and report scores stay within 0-100.
func normalizeTurn(res TurnResult) TurnResult {
	if res.Description == "" {
		return fallbackTurn()
	}
	if res.IsEnded {
		res.Options = nil
	}
	if res.Report != nil {
		if res.Report.Score < 0 {
			res.Report.Score = 0
		}
		if res.Report.Score > 100 {
			res.Report.Score = 100
		}
	}
	if !res.IsEnded {
		res.Report = nil
	}
	return res
}
