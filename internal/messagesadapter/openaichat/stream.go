package openaichat

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// ErrReassemblerClosed is returned when fragments are fed to a reassembler that already
// finished or was abandoned.
var ErrReassemblerClosed = errors.New("reassembler closed")

type reassemblerState int

const (
	stateAwaitingFirstFragment reassemblerState = iota
	stateStreaming
	stateFinished
	stateAbandoned
)

// toolBlock tracks one backend tool call while it streams.
type toolBlock struct {
	frontIndex int
	started    bool
	id         string
	name       string

	// args holds all argument text seen so far. Until the block starts it is the backlog
	// flushed as the first delta.
	args strings.Builder
}

// Reassembler regroups backend delta fragments into Anthropic stream events.
//
// Anthropic streams frame content as blocks (content_block_start, any number of
// content_block_delta, content_block_stop) with dense indices in first-seen order, while
// Chat Completions streams interleave bare text and tool call deltas keyed by their own tool
// index. The reassembler owns that mapping for one response:
//
//   - the first fragment of any kind emits message_start
//   - text opens a single text block on first appearance
//   - each backend tool index opens its own tool_use block once its name is known
//   - argument fragments are forwarded verbatim as input_json_delta, never re-parsed
//   - the finish marker stops all open blocks in ascending index order, then emits
//     message_delta and message_stop
//
// A Reassembler is not safe for concurrent use. It is single-use: once finished or abandoned
// it rejects further input.
type Reassembler struct {
	messageID string
	model     string

	state     reassemblerState
	nextIndex int

	textOpen  bool
	textIndex int

	tools map[int]*toolBlock
	usage *CompletionUsage
}

// NewReassembler returns a reassembler for one streamed response. messageID and model are
// reported in message_start.
func NewReassembler(messageID, model string) *Reassembler {
	return &Reassembler{
		messageID: messageID,
		model:     model,
		tools:     make(map[int]*toolBlock),
	}
}

// Feed consumes one fragment and returns the events it produces, in order.
func (r *Reassembler) Feed(f Fragment) ([]types.StreamEvent, error) {
	if r.state == stateFinished || r.state == stateAbandoned {
		return nil, ErrReassemblerClosed
	}

	var events []types.StreamEvent
	if r.state == stateAwaitingFirstFragment {
		events = append(events, r.messageStart())
		r.state = stateStreaming
	}

	switch f := f.(type) {
	case RoleFragment:
	case TextFragment:
		events = r.appendText(events, f.Text)
	case ToolCallFragment:
		events = r.appendToolCall(events, f)
	case UsageFragment:
		usage := f.Usage
		r.usage = &usage
	case FinishFragment:
		if f.Usage != nil {
			r.usage = f.Usage
		}
		events = r.close(events, toStopReason(f.Reason))
	case KeepAliveFragment:
		events = append(events, types.PingEvent{})
	default:
		return events, fmt.Errorf("unknown fragment type %T", f)
	}
	return events, nil
}

// Finish handles a backend stream that ended cleanly. If no finish marker arrived, open blocks
// are closed and the message ends with end_turn. After a finish marker it returns nothing.
func (r *Reassembler) Finish() ([]types.StreamEvent, error) {
	switch r.state {
	case stateFinished:
		return nil, nil
	case stateAbandoned:
		return nil, ErrReassemblerClosed
	}

	var events []types.StreamEvent
	if r.state == stateAwaitingFirstFragment {
		events = append(events, r.messageStart())
	}
	return r.close(events, types.StopReasonEndTurn), nil
}

// Abandon ends the reassembler after an early termination. It emits nothing: a synthetic
// message_stop would report an incomplete response as complete.
func (r *Reassembler) Abandon() {
	r.state = stateAbandoned
}

func (r *Reassembler) messageStart() types.StreamEvent {
	return types.MessageStartEvent{Message: types.NewMessage(r.messageID, r.model)}
}

func (r *Reassembler) appendText(events []types.StreamEvent, text string) []types.StreamEvent {
	if text == "" {
		return events
	}
	if !r.textOpen {
		r.textOpen = true
		r.textIndex = r.allocIndex()
		events = append(events, types.ContentBlockStartEvent{
			Index:        r.textIndex,
			ContentBlock: types.TextBlock{},
		})
	}
	return append(events, types.ContentBlockDeltaEvent{
		Index: r.textIndex,
		Delta: types.TextDelta{Text: text},
	})
}

func (r *Reassembler) appendToolCall(events []types.StreamEvent, f ToolCallFragment) []types.StreamEvent {
	block, ok := r.tools[f.Index]
	if !ok {
		block = &toolBlock{}
		r.tools[f.Index] = block
	}
	if block.id == "" && f.ID != "" {
		block.id = f.ID
	}
	if block.name == "" && f.Name != "" {
		block.name = f.Name
	}
	block.args.WriteString(f.Arguments)

	if !block.started {
		// Some backends send the id and name in separate fragments; the block starts once the
		// name is known and any arguments seen before that go out as its first delta.
		if block.name == "" {
			return events
		}
		block.started = true
		block.frontIndex = r.allocIndex()
		if block.id == "" {
			block.id = newToolUseID()
		}
		events = append(events, types.ContentBlockStartEvent{
			Index:        block.frontIndex,
			ContentBlock: types.ToolUseBlock{ID: block.id, Name: block.name},
		})

		backlog := block.args.String()
		if backlog != "" {
			events = append(events, types.ContentBlockDeltaEvent{
				Index: block.frontIndex,
				Delta: types.InputJSONDelta{PartialJSON: backlog},
			})
		}
		return events
	}

	if f.Arguments == "" {
		return events
	}
	return append(events, types.ContentBlockDeltaEvent{
		Index: block.frontIndex,
		Delta: types.InputJSONDelta{PartialJSON: f.Arguments},
	})
}

// close stops every open block in ascending index order and ends the message.
func (r *Reassembler) close(events []types.StreamEvent, stopReason types.StopReason) []types.StreamEvent {
	open := make([]int, 0, len(r.tools)+1)
	if r.textOpen {
		open = append(open, r.textIndex)
	}
	for _, block := range r.tools {
		if block.started {
			open = append(open, block.frontIndex)
		}
	}
	slices.Sort(open)

	for _, index := range open {
		events = append(events, types.ContentBlockStopEvent{Index: index})
	}

	r.textOpen = false
	clear(r.tools)
	r.state = stateFinished

	return append(events,
		types.MessageDeltaEvent{
			Delta: types.MessageDelta{StopReason: stopReason},
			Usage: toDeltaUsage(r.usage),
		},
		types.MessageStopEvent{},
	)
}

func (r *Reassembler) allocIndex() int {
	index := r.nextIndex
	r.nextIndex++
	return index
}
