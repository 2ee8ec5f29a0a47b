// Package tokens provides the token estimators used for compression
// accounting: a character heuristic and an exact tiktoken encoder.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

func init() {
	// Offline loader keeps startup independent of the network.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// CharEstimator prices text at one token per four characters, rounded
// up. It is the default because its numbers are stable across model
// swaps.
type CharEstimator struct{}

func (CharEstimator) EstimateTokens(text string) int {
	return domain.EstimateTokensFromText(text)
}

// TiktokenEstimator counts exact cl100k_base tokens. The encoding is
// loaded once and shared.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

var (
	tiktokenInstance *TiktokenEstimator
	tiktokenOnce     sync.Once
	tiktokenErr      error
)

func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			tiktokenErr = err
			return
		}
		tiktokenInstance = &TiktokenEstimator{encoding: enc}
	})
	if tiktokenErr != nil {
		return nil, tiktokenErr
	}
	return tiktokenInstance, nil
}

func (e *TiktokenEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(e.encoding.Encode(text, nil, nil))
}
