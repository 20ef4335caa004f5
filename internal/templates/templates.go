// Package templates stores and renders the message template pools.
// Templates are keyed by (owner, category, key); the empty owner holds
// the shared defaults every owner falls back to.
package templates

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrTemplateNotFound means no template matched the lookup.
var ErrTemplateNotFound = errors.New("template not found")

// Template is one stored message template. Content is either plain
// text or a JSON object {"content": ..., "reply_relay": ...}.
type Template struct {
	Owner    string `json:"owner"`
	Category string `json:"category"`
	Key      string `json:"key"`
	Content  string `json:"content"`
}

// Parsed is a template body split into its text and optional relay hint.
type Parsed struct {
	Content    string
	ReplyRelay string
}

// Store is the persistence surface for templates. Implementations must
// be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, owner, category, key string) (*Template, error)
	List(ctx context.Context, owner, category string) ([]Template, error)
	Categories(ctx context.Context, owner string) ([]string, error)
	Put(ctx context.Context, tpl Template) error
	Delete(ctx context.Context, owner, category, key string) error
	DeleteCategory(ctx context.Context, owner, category string) (int, error)
	RenameCategory(ctx context.Context, owner, oldName, newName string) (int, error)
}

// Lookup resolves a template with owner precedence: the owner's own
// copy wins, then the shared defaults under the empty owner.
func Lookup(ctx context.Context, store Store, owner, category, key string) (*Template, error) {
	if owner != "" {
		tpl, err := store.Get(ctx, owner, category, key)
		if err == nil {
			return tpl, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
	}
	return store.Get(ctx, "", category, key)
}

// ListMerged returns the owner's view of a category: shared defaults
// overlaid with the owner's own templates.
func ListMerged(ctx context.Context, store Store, owner, category string) ([]Template, error) {
	shared, err := store.List(ctx, "", category)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return shared, nil
	}
	own, err := store.List(ctx, owner, category)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]int, len(shared))
	merged := make([]Template, len(shared))
	copy(merged, shared)
	for i, tpl := range merged {
		byKey[tpl.Key] = i
	}
	for _, tpl := range own {
		if i, ok := byKey[tpl.Key]; ok {
			merged[i] = tpl
		} else {
			merged = append(merged, tpl)
		}
	}
	return merged, nil
}

// ParseContent splits a template body into text and relay hint. Bodies
// that are JSON objects with a "content" field carry an optional
// "reply_relay"; everything else is plain text.
func ParseContent(body string) Parsed {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Content    string `json:"content"`
			ReplyRelay string `json:"reply_relay"`
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj.Content != "" {
			return Parsed{Content: obj.Content, ReplyRelay: obj.ReplyRelay}
		}
	}
	return Parsed{Content: body}
}

// Render substitutes {placeholder} markers from values. Unknown
// placeholders stay in the output verbatim so a missing value is
// visible in the published text rather than silently blank.
func Render(text string, values map[string]string) string {
	if len(values) == 0 || !strings.ContainsRune(text, '{') {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	for i := 0; i < len(text); {
		open := strings.IndexByte(text[i:], '{')
		if open == -1 {
			out.WriteString(text[i:])
			break
		}
		open += i
		out.WriteString(text[i:open])

		close := strings.IndexByte(text[open:], '}')
		if close == -1 {
			out.WriteString(text[open:])
			break
		}
		close += open

		name := text[open+1 : close]
		if v, ok := values[name]; ok {
			out.WriteString(v)
		} else {
			out.WriteString(text[open : close+1])
		}
		i = close + 1
	}
	return out.String()
}
