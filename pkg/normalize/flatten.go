package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"bililottery/pkg/bilibili"
)

// FlattenComments walks a page's reply trees in pre-order, each comment
// followed by its own replies, and appends one record per comment.
// Duplicate content (after trimming) is stamped with the first carrier's
// id and the running repeat count.
func FlattenComments(nodes []bilibili.CommentNode, dups *DuplicateMap) []CommentRecord {
	if dups == nil {
		dups = NewDuplicateMap()
	}
	records := make([]CommentRecord, 0, len(nodes))
	return appendComments(records, nodes, dups)
}

func appendComments(records []CommentRecord, nodes []bilibili.CommentNode, dups *DuplicateMap) []CommentRecord {
	for i := range nodes {
		node := &nodes[i]
		record := CommentRecord{
			ID:             node.Member.Mid.Int64(),
			UserName:       node.Member.Uname,
			UserSign:       node.Member.Sign,
			Avatar:         node.Member.Avatar,
			Pendant:        node.Member.Pendant.ImageEnhance,
			Level:          node.Member.LevelInfo.CurrentLevel,
			VIP:            node.Member.Vip.Label.LabelTheme,
			VIPDescription: node.Member.Vip.Label.Text,
			Content:        node.Content.Message,
			Date:           FormatTimestamp(node.Ctime),
			ReplyID:        node.Rpid,
		}
		if originalID, repeats, dup := dups.observe(node.Content.Message, node.Rpid); dup {
			record.OriginalCommentID = originalID
			record.DuplicateCommentCount = repeats
		}
		records = append(records, record)
		records = appendComments(records, node.Replies, dups)
	}
	return records
}

// actionRule maps one raw action token to a reaction label. Rules are
// evaluated in order, first match wins.
type actionRule struct {
	match func(token string, numeric bool) bool
	label string
}

var actionRules = []actionRule{
	{func(token string, numeric bool) bool {
		return !numeric && (strings.Contains(token, "转发") || strings.Contains(strings.ToLower(token), "forward"))
	}, ActionForward},
	{func(token string, numeric bool) bool {
		return !numeric && (strings.Contains(token, "赞") || strings.Contains(strings.ToLower(token), "like"))
	}, ActionLike},
	{func(token string, numeric bool) bool {
		return numeric && token == "1"
	}, ActionForward},
	{func(token string, numeric bool) bool {
		return numeric
	}, ActionLike},
}

// ClassifyAction resolves a reaction item's raw action/type fields, which
// arrive as either a string label or a numeric code, into a display label.
// The type field is consulted only when action carries nothing usable; an
// unrecognized label counts as a like.
func ClassifyAction(item *bilibili.ReactionItem) string {
	for _, raw := range []json.RawMessage{item.Action, item.Type} {
		token, numeric, ok := decodeActionToken(raw)
		if !ok {
			continue
		}
		for _, rule := range actionRules {
			if rule.match(token, numeric) {
				return rule.label
			}
		}
		break
	}
	return ActionLike
}

func decodeActionToken(raw json.RawMessage) (token string, numeric bool, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false, false
		}
		return s, false, true
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false, false
	}
	return strconv.FormatInt(n, 10), true, true
}

// NormalizeReaction converts a raw reaction item, whose user block may be
// nested or inlined, into a flat record.
func NormalizeReaction(item *bilibili.ReactionItem) ReactionRecord {
	record := ReactionRecord{Action: ClassifyAction(item)}
	if u := item.User; u != nil {
		record.ID = firstNonZero(u.Mid.Int64(), u.UID.Int64())
		record.UserName = firstNonEmpty(u.Name, u.Uname)
		record.Avatar = firstNonEmpty(u.Face, u.Avatar)
		return record
	}
	record.ID = firstNonZero(item.Mid.Int64(), item.UID.Int64())
	record.UserName = firstNonEmpty(item.Name, item.Uname)
	record.Avatar = firstNonEmpty(item.Face, item.Avatar)
	return record
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
