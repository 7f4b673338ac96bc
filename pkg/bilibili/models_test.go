package bilibili

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt64Decoding(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int64
	}{
		{"number", `{"mid":12345}`, 12345},
		{"quoted number", `{"mid":"12345"}`, 12345},
		{"null", `{"mid":null}`, 0},
		{"empty string", `{"mid":""}`, 0},
		{"garbage degrades to zero", `{"mid":"not-a-number"}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var holder struct {
				Mid FlexInt64 `json:"mid"`
			}
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &holder))
			assert.Equal(t, tc.want, holder.Mid.Int64())
		})
	}
}

func TestFlexInt64GarbageDoesNotFailPageDecode(t *testing.T) {
	raw := `{"replies":[{"rpid":1,"member":{"mid":{"weird":true},"uname":"u"},"content":{"message":"c"}}]}`
	var page CommentPage
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	require.Len(t, page.Replies, 1)
	assert.Zero(t, page.Replies[0].Member.Mid.Int64())
	assert.Equal(t, "u", page.Replies[0].Member.Uname)
}
