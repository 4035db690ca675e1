package types

// SSE event names. Each is also the value of the event's "type" field.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// StreamEvent is one frame of a streamed response. The set of implementations is closed.
type StreamEvent interface {
	EventName() string
	streamEvent()
}

// MessageStartEvent opens the stream with an empty message shell.
type MessageStartEvent struct {
	Message Message `json:"message"`
}

// ContentBlockStartEvent opens the content block at Index.
type ContentBlockStartEvent struct {
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// ContentBlockDeltaEvent appends to the open block at Index.
type ContentBlockDeltaEvent struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

// ContentBlockStopEvent closes the block at Index.
type ContentBlockStopEvent struct {
	Index int `json:"index"`
}

// MessageDeltaEvent carries the stop reason and final usage.
type MessageDeltaEvent struct {
	Delta MessageDelta `json:"delta"`
	Usage DeltaUsage   `json:"usage"`
}

// MessageDelta is the top-level message change reported at the end of a stream.
type MessageDelta struct {
	StopReason   StopReason `json:"stop_reason"`
	StopSequence *string    `json:"stop_sequence"`
}

// DeltaUsage is the usage object of message_delta.
type DeltaUsage struct {
	InputTokens  *int `json:"input_tokens,omitempty"`
	OutputTokens int  `json:"output_tokens"`
}

// MessageStopEvent terminates a successful stream.
type MessageStopEvent struct{}

// PingEvent keeps idle connections alive.
type PingEvent struct{}

// ErrorEvent reports a failure after the stream has started.
type ErrorEvent struct {
	Err ErrorDetail `json:"error"`
}

func (MessageStartEvent) EventName() string      { return EventMessageStart }
func (ContentBlockStartEvent) EventName() string { return EventContentBlockStart }
func (ContentBlockDeltaEvent) EventName() string { return EventContentBlockDelta }
func (ContentBlockStopEvent) EventName() string  { return EventContentBlockStop }
func (MessageDeltaEvent) EventName() string      { return EventMessageDelta }
func (MessageStopEvent) EventName() string       { return EventMessageStop }
func (PingEvent) EventName() string              { return EventPing }
func (ErrorEvent) EventName() string             { return EventError }

func (MessageStartEvent) streamEvent()      {}
func (ContentBlockStartEvent) streamEvent() {}
func (ContentBlockDeltaEvent) streamEvent() {}
func (ContentBlockStopEvent) streamEvent()  {}
func (MessageDeltaEvent) streamEvent()      {}
func (MessageStopEvent) streamEvent()       {}
func (PingEvent) streamEvent()              {}
func (ErrorEvent) streamEvent()             {}

// MarshalJSON writes the event with its type field.
func (e MessageStartEvent) MarshalJSON() ([]byte, error) {
	type alias MessageStartEvent
	return marshalTagged(EventMessageStart, alias(e))
}

// MarshalJSON writes the event with its type field.
func (e ContentBlockStartEvent) MarshalJSON() ([]byte, error) {
	type alias ContentBlockStartEvent
	return marshalTagged(EventContentBlockStart, alias(e))
}

// MarshalJSON writes the event with its type field.
func (e ContentBlockDeltaEvent) MarshalJSON() ([]byte, error) {
	type alias ContentBlockDeltaEvent
	return marshalTagged(EventContentBlockDelta, alias(e))
}

// MarshalJSON writes the event with its type field.
func (e ContentBlockStopEvent) MarshalJSON() ([]byte, error) {
	type alias ContentBlockStopEvent
	return marshalTagged(EventContentBlockStop, alias(e))
}

// MarshalJSON writes the event with its type field.
func (e MessageDeltaEvent) MarshalJSON() ([]byte, error) {
	type alias MessageDeltaEvent
	return marshalTagged(EventMessageDelta, alias(e))
}

// MarshalJSON writes the event with its type field.
func (e MessageStopEvent) MarshalJSON() ([]byte, error) {
	return marshalTagged(EventMessageStop, struct{}{})
}

// MarshalJSON writes the event with its type field.
func (e PingEvent) MarshalJSON() ([]byte, error) {
	return marshalTagged(EventPing, struct{}{})
}

// MarshalJSON writes the event with its type field.
func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	type alias ErrorEvent
	return marshalTagged(EventError, alias(e))
}

// Delta discriminators.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// Delta is the payload of content_block_delta: TextDelta or InputJSONDelta.
type Delta interface {
	DeltaType() string
	delta()
}

// TextDelta appends text to a text block.
type TextDelta struct {
	Text string `json:"text"`
}

// InputJSONDelta appends a fragment of a tool call's JSON input.
type InputJSONDelta struct {
	PartialJSON string `json:"partial_json"`
}

func (TextDelta) DeltaType() string      { return DeltaTypeText }
func (InputJSONDelta) DeltaType() string { return DeltaTypeInputJSON }

func (TextDelta) delta()      {}
func (InputJSONDelta) delta() {}

// MarshalJSON writes the delta with its type field.
func (d TextDelta) MarshalJSON() ([]byte, error) {
	type alias TextDelta
	return marshalTagged(DeltaTypeText, alias(d))
}

// MarshalJSON writes the delta with its type field.
func (d InputJSONDelta) MarshalJSON() ([]byte, error) {
	type alias InputJSONDelta
	return marshalTagged(DeltaTypeInputJSON, alias(d))
}
