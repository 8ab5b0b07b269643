package metrics

import (
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/recall-agent/internal/message"
)

// Features holds size features of the text carried by a set of messages.
type Features struct {
	Messages int
	Parts    int
	Bytes    int
	Runes    int
	Words    int
}

// CountFeatures sums the text features of msgs. Only text and reasoning parts
// contribute to the byte, rune and word counts.
func CountFeatures(msgs []*message.Message) Features {
	var f Features
	for _, m := range msgs {
		f.Messages++
		for _, p := range m.Content.Parts {
			if p.Type == message.PartStepStart {
				continue
			}
			f.Parts++
			if p.Type != message.PartText && p.Type != message.PartReasoning {
				continue
			}
			f.Bytes += len(p.Text)
			f.Runes += utf8.RuneCountInString(p.Text)
			f.Words += len(strings.Fields(p.Text))
		}
	}
	return f
}

// Fields renders f for a telemetry event.
func (f Features) Fields() map[string]any {
	return map[string]any{
		"messages": f.Messages,
		"parts":    f.Parts,
		"bytes":    f.Bytes,
		"runes":    f.Runes,
		"words":    f.Words,
	}
}
