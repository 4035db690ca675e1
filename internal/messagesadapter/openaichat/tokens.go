package openaichat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Per-item overheads of the chat format, following OpenAI's published counting recipe.
const (
	tokensPerMessage  = 3
	tokensPerRole     = 1
	tokensPerToolCall = 3
	tokensPerTool     = 7
	tokensPriming     = 3

	// tokensPerImage is the cost of a low-detail image; detail is not known up front.
	tokensPerImage = 85
)

// TokenCounter estimates prompt tokens of translated requests with tiktoken. Counting the
// translated request measures what the backend will actually bill.
type TokenCounter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewTokenCounter creates a counter with an empty codec cache.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Count returns the estimated prompt tokens of req.
func (c *TokenCounter) Count(req ChatCompletionRequest) (int, error) {
	codec, err := c.codec(req.Model)
	if err != nil {
		return 0, err
	}

	encode := func(s string) int {
		if s == "" {
			return 0
		}
		ids, _, err := codec.Encode(s)
		if err != nil {
			return 0
		}
		return len(ids)
	}

	total := 0
	for _, msg := range req.Messages {
		total += tokensPerMessage + tokensPerRole

		switch {
		case msg.Content.Parts != nil:
			for _, part := range msg.Content.Parts {
				switch part.Type {
				case PartTypeImageURL:
					total += tokensPerImage
				default:
					total += encode(part.Text)
				}
			}
		case msg.Content.Text != nil:
			total += encode(*msg.Content.Text)
		}

		for _, call := range msg.ToolCalls {
			total += encode(call.Function.Name) + encode(call.Function.Arguments) + tokensPerToolCall
		}
	}

	for _, tool := range req.Tools {
		total += encode(tool.Function.Name) + encode(tool.Function.Description)
		if tool.Function.Parameters != nil {
			total += encode(serializeOrStringify(tool.Function.Parameters))
		}
		total += tokensPerTool
	}

	return total + tokensPriming, nil
}

// codec returns the tokenizer for model. Codecs are cached per encoding, so arbitrary
// passthrough model names share a handful of entries.
func (c *TokenCounter) codec(model string) (tokenizer.Codec, error) {
	encoding := encodingForModel(model)

	c.mu.RLock()
	codec, ok := c.codecs[encoding]
	c.mu.RUnlock()
	if ok {
		return codec, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer encoding %s: %w", encoding, err)
	}

	c.mu.Lock()
	c.codecs[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

// encodingForModel picks the tiktoken encoding of a chat model. Models tiktoken does not
// know (most non-OpenAI backends) use o200k_base, the encoding of current OpenAI models.
func encodingForModel(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
