package model

import "context"

// Static is a Model that answers every turn with the same text and never
// requests tools. It stands in when no provider client is wired for the
// selected catalog entry.
type Static struct {
	name    string
	content string
}

// NewStatic creates a static model named name that always replies content.
func NewStatic(name, content string) *Static {
	return &Static{name: name, content: content}
}

func (s *Static) Name() string {
	return s.name
}

func (s *Static) Stream(ctx context.Context, system string, msgs []Message, tools []ToolSpec, onToken func(string)) (*Turn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if onToken != nil {
		onToken(s.content)
	}
	return &Turn{Content: s.content}, nil
}
