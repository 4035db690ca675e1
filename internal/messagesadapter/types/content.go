package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Content block discriminators.
const (
	BlockTypeText       = "text"
	BlockTypeImage      = "image"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ContentBlock is one typed unit of message content. The set of implementations is closed:
// TextBlock, ImageBlock, ToolUseBlock, ToolResultBlock and UnknownBlock.
type ContentBlock interface {
	BlockType() string
	contentBlock()
}

// TextBlock is a plain text content block.
type TextBlock struct {
	Text string `json:"text"`
}

// ImageBlock carries an image. Only base64 sources are translated upstream.
type ImageBlock struct {
	Source ImageSource `json:"source"`
}

// ImageSource describes where image bytes come from.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ToolUseBlock is a tool invocation emitted by the assistant.
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResultBlock returns the output of a tool invocation to the model.
type ToolResultBlock struct {
	ToolUseID string            `json:"tool_use_id"`
	Content   ToolResultContent `json:"content"`
	IsError   bool              `json:"is_error,omitempty"`
}

// UnknownBlock preserves a block whose type this proxy does not understand
// (documents, thinking, server tools, ...). Translators drop it.
type UnknownBlock struct {
	Type string
	Raw  json.RawMessage
}

func (TextBlock) BlockType() string       { return BlockTypeText }
func (ImageBlock) BlockType() string      { return BlockTypeImage }
func (ToolUseBlock) BlockType() string    { return BlockTypeToolUse }
func (ToolResultBlock) BlockType() string { return BlockTypeToolResult }
func (b UnknownBlock) BlockType() string  { return b.Type }

func (TextBlock) contentBlock()       {}
func (ImageBlock) contentBlock()      {}
func (ToolUseBlock) contentBlock()    {}
func (ToolResultBlock) contentBlock() {}
func (UnknownBlock) contentBlock()    {}

// MarshalJSON writes the block with its type discriminator.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	type alias TextBlock
	return marshalTagged(BlockTypeText, alias(b))
}

// MarshalJSON writes the block with its type discriminator.
func (b ImageBlock) MarshalJSON() ([]byte, error) {
	type alias ImageBlock
	return marshalTagged(BlockTypeImage, alias(b))
}

// MarshalJSON writes the block with its type discriminator. A nil input is written as {}
// because clients treat tool_use input as a required object.
func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	type alias ToolUseBlock
	if b.Input == nil {
		b.Input = map[string]any{}
	}
	return marshalTagged(BlockTypeToolUse, alias(b))
}

// MarshalJSON writes the block with its type discriminator.
func (b ToolResultBlock) MarshalJSON() ([]byte, error) {
	type alias ToolResultBlock
	return marshalTagged(BlockTypeToolResult, alias(b))
}

// MarshalJSON writes the original bytes back unchanged.
func (b UnknownBlock) MarshalJSON() ([]byte, error) {
	if len(b.Raw) == 0 {
		return json.Marshal(map[string]string{"type": b.Type})
	}
	return b.Raw, nil
}

// ContentBlocks is an ordered list of content blocks that decodes each element by its
// type discriminator.
type ContentBlocks []ContentBlock

// UnmarshalJSON decodes a JSON array of tagged content blocks.
func (c *ContentBlocks) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("content blocks must be an array: %w", err)
	}

	blocks := make(ContentBlocks, 0, len(raws))
	for i, raw := range raws {
		block, err := decodeContentBlock(raw)
		if err != nil {
			return fmt.Errorf("content block %d: %w", i, err)
		}
		blocks = append(blocks, block)
	}
	*c = blocks
	return nil
}

func decodeContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case BlockTypeText:
		var b TextBlock
		type alias TextBlock
		err := json.Unmarshal(raw, (*alias)(&b))
		return b, err
	case BlockTypeImage:
		var b ImageBlock
		type alias ImageBlock
		err := json.Unmarshal(raw, (*alias)(&b))
		return b, err
	case BlockTypeToolUse:
		var b ToolUseBlock
		type alias ToolUseBlock
		err := json.Unmarshal(raw, (*alias)(&b))
		return b, err
	case BlockTypeToolResult:
		var b ToolResultBlock
		type alias ToolResultBlock
		err := json.Unmarshal(raw, (*alias)(&b))
		return b, err
	case "":
		return nil, errors.New("missing type discriminator")
	default:
		return UnknownBlock{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

// MessageContent is either a bare string or an ordered list of content blocks. An explicit
// JSON null is kept apart from empty text.
type MessageContent struct {
	text     string
	blocks   ContentBlocks
	isBlocks bool
	isNull   bool
}

// TextContent returns string-form content.
func TextContent(text string) MessageContent {
	return MessageContent{text: text}
}

// BlocksContent returns block-form content.
func BlocksContent(blocks ...ContentBlock) MessageContent {
	return MessageContent{blocks: blocks, isBlocks: true}
}

// NullContent returns content that was sent as JSON null.
func NullContent() MessageContent {
	return MessageContent{isNull: true}
}

// IsNull reports whether the content was JSON null.
func (c MessageContent) IsNull() bool { return c.isNull }

// IsBlocks reports whether the content was given as a block list.
func (c MessageContent) IsBlocks() bool { return c.isBlocks }

// Text returns the bare string form; empty for block content.
func (c MessageContent) Text() string { return c.text }

// Blocks returns the block list; nil for string content.
func (c MessageContent) Blocks() []ContentBlock { return c.blocks }

// HasToolResults reports whether any block is a tool result.
func (c MessageContent) HasToolResults() bool {
	for _, block := range c.blocks {
		if _, ok := block.(ToolResultBlock); ok {
			return true
		}
	}
	return false
}

// MarshalJSON writes a JSON string, an array of blocks, or null.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.isNull {
		return []byte("null"), nil
	}
	if !c.isBlocks {
		return json.Marshal(c.text)
	}
	if c.blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ContentBlock(c.blocks))
}

// UnmarshalJSON accepts a string, an array of blocks, or null. Null reads as empty text
// through Text.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = NullContent()
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = TextContent(text)
		return nil
	}

	var blocks ContentBlocks
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return fmt.Errorf("content must be a string or array of content blocks: %w", err)
	}
	*c = MessageContent{blocks: blocks, isBlocks: true}
	return nil
}

// ToolResultKind identifies which shape a tool result's content arrived in.
type ToolResultKind int

const (
	ToolResultAbsent ToolResultKind = iota
	ToolResultString
	ToolResultObject
	ToolResultList
)

// ToolResultContent is the content of a tool result: a string, a structured object, a list
// of items (strings or objects), or nothing.
type ToolResultContent struct {
	kind   ToolResultKind
	text   string
	object map[string]any
	items  []any
}

// ToolResultText returns string-form tool result content.
func ToolResultText(text string) ToolResultContent {
	return ToolResultContent{kind: ToolResultString, text: text}
}

// ToolResultObjectContent returns object-form tool result content.
func ToolResultObjectContent(object map[string]any) ToolResultContent {
	return ToolResultContent{kind: ToolResultObject, object: object}
}

// ToolResultItems returns list-form tool result content.
func ToolResultItems(items ...any) ToolResultContent {
	if items == nil {
		items = []any{}
	}
	return ToolResultContent{kind: ToolResultList, items: items}
}

// Kind returns the shape of the content.
func (c ToolResultContent) Kind() ToolResultKind { return c.kind }

// String returns the string form.
func (c ToolResultContent) String() string { return c.text }

// Object returns the object form.
func (c ToolResultContent) Object() map[string]any { return c.object }

// Items returns the list form.
func (c ToolResultContent) Items() []any { return c.items }

// MarshalJSON writes the content in the shape it was constructed with.
func (c ToolResultContent) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ToolResultString:
		return json.Marshal(c.text)
	case ToolResultObject:
		return json.Marshal(c.object)
	case ToolResultList:
		return json.Marshal(c.items)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an object, an array, or null.
func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = ToolResultContent{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = ToolResultText(text)
	case '{':
		var object map[string]any
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return err
		}
		*c = ToolResultObjectContent(object)
	case '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*c = ToolResultItems(items...)
	default:
		// Scalars are kept as a single list item so they survive as text.
		var scalar any
		if err := json.Unmarshal(trimmed, &scalar); err != nil {
			return err
		}
		*c = ToolResultItems(scalar)
	}
	return nil
}

// marshalTagged encodes v and prepends a "type" field.
func marshalTagged(blockType string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typeJSON, err := json.Marshal(blockType)
	if err != nil {
		return nil, err
	}
	buf.Write(typeJSON)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}
