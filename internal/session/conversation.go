package session

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one immutable turn of the conversation.
type Entry struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Log is the append-only conversation of a session, in creation order.
// Only this package can add to it or reset it.
type Log struct {
	entries []Entry
}

// newLog starts a conversation, seeded with an assistant greeting when one is configured.
func newLog(greeting string, at time.Time) Log {
	if greeting == "" {
		return Log{}
	}
	return Log{entries: []Entry{{Role: RoleAssistant, Content: greeting, At: at}}}
}

func (l *Log) append(role Role, content string, at time.Time) {
	l.entries = append(l.entries, Entry{Role: role, Content: content, At: at})
}

// Len returns the number of entries.
func (l Log) Len() int { return len(l.entries) }

// Entries returns a copy of the entries, oldest first.
func (l Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the newest entry.
func (l Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l Log) clone() Log {
	if l.entries == nil {
		return Log{}
	}
	return Log{entries: l.Entries()}
}

func (l Log) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *Log) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		entries = nil
	}
	l.entries = entries
	return nil
}
