package message

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a structural key for parts. Step markers are ignored so
// a message compares equal before and after a step-start is prepended.
func Fingerprint(parts []Part) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		if p.Type == PartStepStart {
			continue
		}
		field(d, string(p.Type))
		switch p.Type {
		case PartText:
			field(d, p.Text)
		case PartReasoning:
			field(d, p.Text)
			field(d, p.Signature)
		case PartRedactedReasoning:
			field(d, p.Data)
		case PartFile:
			field(d, p.Data)
			field(d, p.MimeType)
		case PartToolInvocation:
			if ti := p.ToolInvocation; ti != nil {
				field(d, ti.ToolCallID)
				field(d, ti.ToolName)
				field(d, string(ti.State))
				field(d, string(ti.Args))
				field(d, string(ti.Result))
			}
		}
	}
	return d.Sum64()
}

// ContentFingerprint returns a structural key for core content.
func ContentFingerprint(c CoreContent) uint64 {
	d := xxhash.New()
	if c.IsString() {
		field(d, c.Text)
		return d.Sum64()
	}
	for _, p := range c.Parts {
		field(d, string(p.Type))
		switch p.Type {
		case CoreText, CoreReasoning:
			field(d, p.Text)
		case CoreToolCall, CoreToolResult:
			field(d, p.ToolCallID)
			field(d, p.ToolName)
		case CoreImage:
			field(d, p.Image)
			field(d, p.MimeType)
		case CoreFile:
			field(d, p.Filename)
			field(d, p.MimeType)
			field(d, strconv.Itoa(len(p.Data)))
		case CoreRedactedReasoning:
			field(d, p.Data)
		}
	}
	return d.Sum64()
}

// Equal reports whether a and b are the same message with the same content.
func Equal(a, b *Message) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && SameContent(a, b)
}

// SameContent reports whether a and b carry structurally identical content
// in the same role and thread, whatever their ids.
func SameContent(a, b *Message) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Role == b.Role && a.ThreadID == b.ThreadID && Fingerprint(a.Content.Parts) == Fingerprint(b.Content.Parts)
}

func field(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(s)
	_, _ = d.Write([]byte{0})
}
