package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hotel-receptionist/internal/cache"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/tools"

	"google.golang.org/genai"
)

// MessageRole names the author of a conversation message.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleModel MessageRole = "model"
	RoleTool  MessageRole = "tool"
)

// ToolResult is the answer to one tool call.
type ToolResult struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Message is one entry of a call's conversation.
type Message struct {
	Role        MessageRole  `json:"role"`
	Text        string       `json:"text,omitempty"`
	ToolCalls   []tools.Call `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

// History is the persisted state of one phone call.
type History struct {
	SID       string         `json:"sid"`
	From      string         `json:"from"`
	Provider  hotel.Provider `json:"provider"`
	VoiceID   string         `json:"voiceId,omitempty"`
	System    string         `json:"system"`
	Tools     []*genai.Tool  `json:"tools"`
	Messages  []Message      `json:"messages"`
	StartedAt time.Time      `json:"startedAt"`
}

// HistoryStore keeps call histories between webhook requests.
type HistoryStore interface {
	Load(ctx context.Context, sid string) (*History, bool, error)
	Save(ctx context.Context, h *History) error
	Delete(ctx context.Context, sid string) error
}

// MemoryHistory is a process-local HistoryStore. With a positive ttl, a call
// untouched for longer than ttl is dropped, so callers who hang up without a
// status callback do not accumulate.
type MemoryHistory struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	calls map[string]memoryEntry
}

type memoryEntry struct {
	history History
	expires time.Time
}

// NewMemoryHistory returns an empty store; ttl <= 0 keeps calls until deleted.
func NewMemoryHistory(ttl time.Duration) *MemoryHistory {
	return &MemoryHistory{ttl: ttl, now: time.Now, calls: make(map[string]memoryEntry)}
}

func (m *MemoryHistory) Load(_ context.Context, sid string) (*History, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	e, ok := m.calls[sid]
	if !ok {
		return nil, false, nil
	}
	h := e.history
	h.Messages = append([]Message(nil), h.Messages...)
	return &h, true, nil
}

func (m *MemoryHistory) Save(_ context.Context, h *History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	cp := *h
	cp.Messages = append([]Message(nil), h.Messages...)
	e := memoryEntry{history: cp}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.calls[h.SID] = e
	return nil
}

// Len reports how many calls are held.
func (m *MemoryHistory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MemoryHistory) evictLocked() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	for sid, e := range m.calls {
		if now.After(e.expires) {
			delete(m.calls, sid)
		}
	}
}

func (m *MemoryHistory) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calls, sid)
	return nil
}

// RedisHistory shares call histories across replicas. Entries expire after
// ttl so abandoned calls do not accumulate.
type RedisHistory struct {
	cache *cache.Redis
	ttl   time.Duration
}

// NewRedisHistory builds a Redis-backed HistoryStore.
func NewRedisHistory(c *cache.Redis, ttl time.Duration) *RedisHistory {
	return &RedisHistory{cache: c, ttl: ttl}
}

func (r *RedisHistory) key(sid string) string {
	return r.cache.Key("call", sid)
}

func (r *RedisHistory) Load(ctx context.Context, sid string) (*History, bool, error) {
	var h History
	ok, err := r.cache.GetJSON(ctx, r.key(sid), &h)
	if err != nil {
		return nil, false, fmt.Errorf("load call %s: %w", sid, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &h, true, nil
}

func (r *RedisHistory) Save(ctx context.Context, h *History) error {
	if err := r.cache.SetJSON(ctx, r.key(h.SID), h, r.ttl); err != nil {
		return fmt.Errorf("save call %s: %w", h.SID, err)
	}
	return nil
}

func (r *RedisHistory) Delete(ctx context.Context, sid string) error {
	return r.cache.Delete(ctx, r.key(sid))
}
