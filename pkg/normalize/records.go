// Package normalize converts raw API payloads into the flat participant
// records a lottery draw consumes: comment trees are flattened in
// pre-order with duplicate-content tracking, and reaction entries are
// classified into forward/like labels.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Display labels for the two reaction kinds.
const (
	ActionForward = "转发了"
	ActionLike    = "赞了"
)

// CommentRecord is one flattened comment participant.
type CommentRecord struct {
	ID                    int64  `json:"id"`
	UserName              string `json:"user_name"`
	UserSign              string `json:"user_sign"`
	Avatar                string `json:"avatar"`
	Pendant               string `json:"pendant"`
	Level                 int    `json:"level"`
	VIP                   string `json:"vip"`
	VIPDescription        string `json:"vip_description"`
	Content               string `json:"content"`
	Date                  string `json:"date"`
	ReplyID               int64  `json:"reply_id"`
	OriginalCommentID     int64  `json:"original_comment_id,omitempty"`
	DuplicateCommentCount int    `json:"duplicate_comment_count"`
}

// ReactionRecord is one forward/like participant.
type ReactionRecord struct {
	ID       int64  `json:"id"`
	UserName string `json:"user_name"`
	Avatar   string `json:"avatar"`
	Action   string `json:"action"`
}

// cst is the display timezone for comment timestamps.
var cst = time.FixedZone("CST", 8*60*60)

// FormatTimestamp renders a Unix-seconds timestamp as a UTC+8 wall-clock
// string. Zero stays empty.
func FormatTimestamp(unix int64) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(unix, 0).In(cst).Format("2006-01-02 15:04:05")
}

// duplicateEntry tracks the first comment that carried a given content
// digest and how many repeats followed it.
type duplicateEntry struct {
	ID    int64 `json:"id"`
	Count int   `json:"count"`
}

// DuplicateMap maps trimmed comment content to its first sighting,
// preserving insertion order so a serialized map round-trips byte-stably.
type DuplicateMap struct {
	order   []string
	entries map[string]*duplicateEntry
}

// NewDuplicateMap returns an empty map.
func NewDuplicateMap() *DuplicateMap {
	return &DuplicateMap{entries: make(map[string]*duplicateEntry)}
}

// Len returns the number of distinct digests seen.
func (m *DuplicateMap) Len() int {
	return len(m.entries)
}

// observe registers a comment's content and reports the prior sighting,
// if any. Repeats bump the stored count. Empty content never participates.
func (m *DuplicateMap) observe(content string, id int64) (originalID int64, repeats int, dup bool) {
	digest := strings.TrimSpace(content)
	if digest == "" {
		return 0, 0, false
	}
	if entry, ok := m.entries[digest]; ok {
		entry.Count++
		return entry.ID, entry.Count, true
	}
	m.order = append(m.order, digest)
	m.entries[digest] = &duplicateEntry{ID: id}
	return 0, 0, false
}

// MarshalJSON serializes as an ordered list of [digest, entry] pairs.
func (m *DuplicateMap) MarshalJSON() ([]byte, error) {
	pairs := make([][2]json.RawMessage, 0, len(m.order))
	for _, digest := range m.order {
		key, err := json.Marshal(digest)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(m.entries[digest])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]json.RawMessage{key, value})
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON restores the ordered pair form.
func (m *DuplicateMap) UnmarshalJSON(data []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	m.order = m.order[:0]
	m.entries = make(map[string]*duplicateEntry, len(pairs))
	for _, pair := range pairs {
		var digest string
		if err := json.Unmarshal(pair[0], &digest); err != nil {
			return err
		}
		entry := &duplicateEntry{}
		if err := json.Unmarshal(pair[1], entry); err != nil {
			return err
		}
		if _, ok := m.entries[digest]; ok {
			return fmt.Errorf("duplicate digest %q in serialized map", digest)
		}
		m.order = append(m.order, digest)
		m.entries[digest] = entry
	}
	return nil
}
