package message

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/petasbytes/recall-agent/internal/errs"
)

// Shape identifies which wire shape a raw JSON message uses.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeText
	ShapeStorage
	ShapeLegacy
	ShapeCore
	ShapeUI
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeStorage:
		return "storage"
	case ShapeLegacy:
		return "legacy"
	case ShapeCore:
		return "core"
	case ShapeUI:
		return "ui"
	default:
		return "unknown"
	}
}

// DetectShape sniffs the shape of one raw JSON message without decoding it.
//
// Order matters: a versioned envelope wins, then anything declaring a thread
// or resource is legacy, then a parts list marks a UI message, and any
// remaining role/content pair is core.
func DetectShape(raw []byte) Shape {
	if !gjson.ValidBytes(raw) {
		return ShapeUnknown
	}
	r := gjson.ParseBytes(raw)
	if r.Type == gjson.String {
		return ShapeText
	}
	if !r.IsObject() {
		return ShapeUnknown
	}
	content := r.Get("content")
	if content.IsObject() && content.Get("format").Int() == FormatVersion {
		return ShapeStorage
	}
	if r.Get("threadId").Exists() || r.Get("resourceId").Exists() {
		return ShapeLegacy
	}
	if r.Get("parts").IsArray() {
		return ShapeUI
	}
	if content.Type == gjson.String || content.IsArray() {
		return ShapeCore
	}
	return ShapeUnknown
}

// DecodeJSON decodes raw JSON holding one message or an array of messages
// into typed values: string, Message, LegacyMessage, CoreMessage or UIMessage.
func DecodeJSON(raw []byte) ([]any, error) {
	r := gjson.ParseBytes(raw)
	if r.IsArray() {
		var out []any
		var err error
		r.ForEach(func(_, el gjson.Result) bool {
			var v any
			v, err = decodeOne([]byte(el.Raw))
			if err != nil {
				return false
			}
			out = append(out, v)
			return true
		})
		return out, err
	}
	v, err := decodeOne(raw)
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func decodeOne(raw []byte) (any, error) {
	shape := DetectShape(raw)
	var (
		v   any
		err error
	)
	switch shape {
	case ShapeText:
		var s string
		err = json.Unmarshal(raw, &s)
		v = s
	case ShapeStorage:
		var m Message
		err = json.Unmarshal(raw, &m)
		v = m
	case ShapeLegacy:
		var m LegacyMessage
		err = json.Unmarshal(raw, &m)
		v = m
	case ShapeCore:
		var m CoreMessage
		err = json.Unmarshal(raw, &m)
		v = m
	case ShapeUI:
		var m UIMessage
		err = json.Unmarshal(raw, &m)
		v = m
	default:
		return nil, errs.InvalidMessage("unrecognized message shape: %s", truncate(raw, 120))
	}
	if err != nil {
		return nil, errs.InvalidMessage("decoding %s message", shape).WithCause(err)
	}
	return v, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s…", b[:n])
}
