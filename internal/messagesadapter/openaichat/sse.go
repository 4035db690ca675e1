package openaichat

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxSSELineSize bounds a single SSE line. Large tool call arguments can arrive in one chunk.
const maxSSELineSize = 4 << 20

// streamDone is the sentinel payload that ends a Chat Completions stream.
const streamDone = "[DONE]"

// decodeStream reads a Chat Completions SSE body and yields fragments in arrival order.
//
// Each data payload is one chunk that may produce several fragments (role, text, several tool
// call deltas, finish). The finish marker is held back until the next chunk: when
// stream_options.include_usage is set the backend sends usage in a separate, choice-less
// chunk after it, and that usage is merged into the finish fragment. Comment lines yield
// KeepAliveFragment. The stream ends at [DONE] or EOF; read errors and in-stream error
// payloads are yielded as errors.
func decodeStream(body io.Reader) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)

		var (
			data    strings.Builder
			hasData bool
			pending *FinishFragment
			indexer toolCallIndexer
		)

		flush := func() bool {
			if pending == nil {
				return true
			}
			f := *pending
			pending = nil
			return yield(f, nil)
		}

		// dispatch handles one complete event payload. It returns false when iteration must
		// stop, either because the consumer stopped or the stream ended.
		dispatch := func(payload string) bool {
			payload = strings.TrimSpace(payload)
			if payload == "" {
				return true
			}
			if payload == streamDone {
				flush()
				return false
			}

			if !gjson.Valid(payload) {
				yield(nil, fmt.Errorf("decode stream chunk: invalid JSON: %.200s", payload))
				return false
			}

			chunk := gjson.Parse(payload)
			if errResult := chunk.Get("error"); errResult.Exists() && errResult.Type != gjson.Null {
				yield(nil, &UpstreamError{StatusCode: http.StatusBadGateway, Body: []byte(payload)})
				return false
			}

			fragments, finish, usage := parseChunk(chunk, &indexer)

			if len(fragments) > 0 || finish != nil {
				if !flush() {
					return false
				}
			}

			for _, f := range fragments {
				if !yield(f, nil) {
					return false
				}
			}

			switch {
			case finish != nil:
				finish.Usage = usage
				if usage != nil {
					return yield(*finish, nil)
				}
				pending = finish
			case usage != nil && pending != nil:
				pending.Usage = usage
				return flush()
			case usage != nil:
				return yield(UsageFragment{Usage: *usage}, nil)
			}
			return true
		}

		for scanner.Scan() {
			line := scanner.Text()

			switch {
			case line == "":
				// Blank line terminates an event.
				if hasData {
					payload := data.String()
					data.Reset()
					hasData = false
					if !dispatch(payload) {
						return
					}
				}
			case strings.HasPrefix(line, ":"):
				if !flush() {
					return
				}
				if !yield(KeepAliveFragment{}, nil) {
					return
				}
			case strings.HasPrefix(line, "data:"):
				value := strings.TrimPrefix(line, "data:")
				value = strings.TrimPrefix(value, " ")
				if hasData {
					data.WriteByte('\n')
				}
				data.WriteString(value)
				hasData = true
			default:
				// event:, id: and retry: fields carry nothing Chat Completions relies on.
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("read stream: %w", err))
			return
		}

		// EOF without a trailing blank line still completes the last event.
		if hasData && !dispatch(data.String()) {
			return
		}
		flush()
	}
}

// parseChunk extracts the fragments of one chunk. The finish marker and usage are returned
// separately so the caller can merge them.
func parseChunk(chunk gjson.Result, indexer *toolCallIndexer) ([]Fragment, *FinishFragment, *CompletionUsage) {
	var (
		fragments []Fragment
		finish    *FinishFragment
	)

	choice := chunk.Get("choices.0")
	if choice.Exists() {
		delta := choice.Get("delta")

		if role := delta.Get("role").String(); role != "" {
			fragments = append(fragments, RoleFragment{Role: role})
		}
		if content := delta.Get("content"); content.Type == gjson.String && content.Str != "" {
			fragments = append(fragments, TextFragment{Text: content.Str})
		}

		for _, call := range delta.Get("tool_calls").Array() {
			id := call.Get("id").String()
			fragments = append(fragments, ToolCallFragment{
				Index:     indexer.resolve(call.Get("index"), id),
				ID:        id,
				Name:      call.Get("function.name").String(),
				Arguments: call.Get("function.arguments").String(),
			})
		}

		if reason := choice.Get("finish_reason"); reason.Type == gjson.String && reason.Str != "" {
			finish = &FinishFragment{Reason: reason.Str}
		}
	}

	return fragments, finish, parseUsage(chunk.Get("usage"))
}

// toolCallIndexer assigns stable indexes to tool call deltas for the lifetime of one stream.
// Some backends omit index and send each call in its own chunk: an unseen id then opens a
// new call and a delta without id continues the most recent one.
type toolCallIndexer struct {
	byID map[string]int
	last int
	next int
}

func (x *toolCallIndexer) resolve(explicit gjson.Result, id string) int {
	if x.byID == nil {
		x.byID = make(map[string]int)
	}

	known, seen := x.byID[id]

	var index int
	switch {
	case explicit.Exists():
		index = int(explicit.Int())
	case id != "" && seen:
		index = known
	case id != "" || x.next == 0:
		index = x.next
	default:
		index = x.last
	}

	if id != "" && !seen {
		x.byID[id] = index
	}
	x.last = index
	x.next = max(x.next, index+1)
	return index
}

func parseUsage(u gjson.Result) *CompletionUsage {
	if !u.IsObject() {
		return nil
	}
	usage := &CompletionUsage{
		PromptTokens:     int(u.Get("prompt_tokens").Int()),
		CompletionTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:      int(u.Get("total_tokens").Int()),
	}
	if cached := u.Get("prompt_tokens_details.cached_tokens"); cached.Exists() {
		usage.PromptTokensDetails = &PromptTokensDetails{CachedTokens: int(cached.Int())}
	}
	return usage
}
