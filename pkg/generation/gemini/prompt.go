package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
)

// BuildPrompt renders the instruction sent for req.
func BuildPrompt(req generation.Request) string {
	var b strings.Builder

	b.WriteString("Generate ")
	if req.DesiredCount > 0 {
		fmt.Fprintf(&b, "%d ", req.DesiredCount)
	}
	b.WriteString("items from the content below.")
	if len(req.TypeHints) > 0 {
		fmt.Fprintf(&b, " Allowed item types: %s.", strings.Join(req.TypeHints, ", "))
	}
	b.WriteString(" Respond with a JSON array only. Every element is an object with a \"type\" field.")
	b.WriteString("\n\n")
	b.WriteString(req.Content)

	return b.String()
}

// ParseItems decodes the model output. It accepts a bare JSON array or an
// object with an "items" array, optionally wrapped in a markdown code fence.
func ParseItems(text string) ([]generation.Item, error) {
	text = stripFence(strings.TrimSpace(text))
	if text == "" {
		return nil, errors.New("empty response text")
	}

	var raws []json.RawMessage
	if strings.HasPrefix(text, "{") {
		var wrapped struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Items == nil {
			return nil, errors.New(`object response has no "items" array`)
		}
		raws = wrapped.Items
	} else if err := json.Unmarshal([]byte(text), &raws); err != nil {
		return nil, err
	}

	items := make([]generation.Item, 0, len(raws))
	for _, raw := range raws {
		var head struct {
			Type string `json:"type"`
		}
		// Non-object elements are kept with an empty type.
		_ = json.Unmarshal(raw, &head)
		items = append(items, generation.Item{Type: head.Type, Data: raw})
	}
	return items, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
