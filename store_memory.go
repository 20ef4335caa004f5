package main

import (
	"context"
	"sort"
	"strings"
	"sync"

	"cyberherd-messaging/internal/templates"
)

// MemoryStore implements Store with in-process maps. Default backend
// for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]templates.Template // tplKey(owner,category,key)
	settings  map[string]string             // settingKey(owner,name)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]templates.Template),
		settings:  make(map[string]string),
	}
}

func tplKey(owner, category, key string) string {
	return owner + "\x00" + category + "\x00" + key
}

func settingKey(owner, name string) string {
	return owner + "\x00" + name
}

func (s *MemoryStore) Get(ctx context.Context, owner, category, key string) (*templates.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[tplKey(owner, category, key)]
	if !ok {
		return nil, templates.ErrTemplateNotFound
	}
	return &tpl, nil
}

func (s *MemoryStore) List(ctx context.Context, owner, category string) ([]templates.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []templates.Template
	for _, tpl := range s.templates {
		if tpl.Owner != owner {
			continue
		}
		if category != "" && tpl.Category != category {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *MemoryStore) Categories(ctx context.Context, owner string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, tpl := range s.templates {
		if tpl.Owner == owner {
			seen[tpl.Category] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, tpl templates.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tplKey(tpl.Owner, tpl.Category, tpl.Key)] = tpl
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, owner, category, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tplKey(owner, category, key)
	if _, ok := s.templates[k]; !ok {
		return templates.ErrTemplateNotFound
	}
	delete(s.templates, k)
	return nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, owner, category string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := owner + "\x00" + category + "\x00"
	count := 0
	for k := range s.templates {
		if strings.HasPrefix(k, prefix) {
			delete(s.templates, k)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) RenameCategory(ctx context.Context, owner, oldName, newName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := owner + "\x00" + oldName + "\x00"
	count := 0
	for k, tpl := range s.templates {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		delete(s.templates, k)
		tpl.Category = newName
		s.templates[tplKey(owner, newName, tpl.Key)] = tpl
		count++
	}
	return count, nil
}

func (s *MemoryStore) GetSetting(ctx context.Context, owner, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[settingKey(owner, name)]
	return v, ok, nil
}

func (s *MemoryStore) SetSetting(ctx context.Context, owner, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settingKey(owner, name)] = value
	return nil
}

func (s *MemoryStore) DeleteSetting(ctx context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, settingKey(owner, name))
	return nil
}

func (s *MemoryStore) Close() error { return nil }
