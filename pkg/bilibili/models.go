package bilibili

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexInt64 decodes a JSON number or a numeric string. The API is not
// consistent about which it sends for user ids, and occasionally sends
// garbage; an unparseable value degrades to 0 rather than failing the
// surrounding page decode.
type FlexInt64 int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt64(n)
	return nil
}

// Int64 returns the plain value.
func (f FlexInt64) Int64() int64 { return int64(f) }

// envelope is the standard response wrapper: code 0 means success, any
// other code is an application error with message/msg text.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) errorMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

// navData is the account-nav payload: login identity plus the wbi key
// image URLs the signer derives its secret from.
type navData struct {
	Mid    FlexInt64 `json:"mid"`
	Uname  string    `json:"uname"`
	Face   string    `json:"face"`
	WbiImg struct {
		ImgURL string `json:"img_url"`
		SubURL string `json:"sub_url"`
	} `json:"wbi_img"`
}

// LoginUser is the identity of the logged-in account.
type LoginUser struct {
	ID       int64  `json:"id"`
	UserName string `json:"user_name"`
	Avatar   string `json:"avatar"`
}

// Detail describes the harvest target: who posted it, its engagement
// counts, and the comment area coordinates (oid + type).
type Detail struct {
	AuthorID      int64  `json:"author_id"`
	AuthorName    string `json:"author_name"`
	AuthorAvatar  string `json:"author_avatar"`
	Description   string `json:"description"`
	CommentCount  int    `json:"comment_count"`
	ForwardCount  int    `json:"forward_count"`
	LikeCount     int    `json:"like_count"`
	CommentAreaID string `json:"comment_area_id"`
	CommentType   int    `json:"comment_type"`
	SourceType    string `json:"source_type"`
}

// videoDetail is the video-detail wire payload.
type videoDetail struct {
	Aid   int64  `json:"aid"`
	Title string `json:"title"`
	Owner struct {
		Mid  FlexInt64 `json:"mid"`
		Name string    `json:"name"`
		Face string    `json:"face"`
	} `json:"owner"`
	Stat struct {
		Reply int `json:"reply"`
		Share int `json:"share"`
		Like  int `json:"like"`
	} `json:"stat"`
}

// dynamicDetail is the primary dynamic-detail wire payload.
type dynamicDetail struct {
	Item *struct {
		Basic struct {
			CommentIDStr string `json:"comment_id_str"`
			CommentType  int    `json:"comment_type"`
		} `json:"basic"`
		Modules struct {
			Author struct {
				Mid  FlexInt64 `json:"mid"`
				Name string    `json:"name"`
				Face string    `json:"face"`
			} `json:"module_author"`
			Dynamic struct {
				Desc *struct {
					Text string `json:"text"`
				} `json:"desc"`
			} `json:"module_dynamic"`
			Stat struct {
				Comment struct {
					Count int `json:"count"`
				} `json:"comment"`
				Forward struct {
					Count int `json:"count"`
				} `json:"forward"`
				Like struct {
					Count int `json:"count"`
				} `json:"like"`
			} `json:"module_stat"`
		} `json:"modules"`
	} `json:"item"`
}

// legacyDynamicDetail is the old dynamic endpoint's payload. The inner
// card field is itself a JSON document serialized into a string.
type legacyDynamicDetail struct {
	Card *struct {
		Desc *struct {
			Type        int       `json:"type"`
			Comment     int       `json:"comment"`
			Repost      int       `json:"repost"`
			Like        int       `json:"like"`
			RidStr      string    `json:"rid_str"`
			UserProfile struct {
				Info struct {
					UID   FlexInt64 `json:"uid"`
					Uname string    `json:"uname"`
					Face  string    `json:"face"`
				} `json:"info"`
			} `json:"user_profile"`
		} `json:"desc"`
		Card string `json:"card"`
	} `json:"card"`
}

// legacyCard is the embedded card document. Only the description is used.
type legacyCard struct {
	Item struct {
		Description string `json:"description"`
	} `json:"item"`
}

// CommentNode is one comment in the threaded reply tree.
type CommentNode struct {
	Rpid    int64 `json:"rpid"`
	Ctime   int64 `json:"ctime"`
	Member  CommentMember `json:"member"`
	Content struct {
		Message string `json:"message"`
	} `json:"content"`
	Replies []CommentNode `json:"replies"`
}

// CommentMember is the comment author's profile block.
type CommentMember struct {
	Mid     FlexInt64 `json:"mid"`
	Uname   string    `json:"uname"`
	Sign    string    `json:"sign"`
	Avatar  string    `json:"avatar"`
	Pendant struct {
		ImageEnhance string `json:"image_enhance"`
	} `json:"pendant"`
	LevelInfo struct {
		CurrentLevel int `json:"current_level"`
	} `json:"level_info"`
	Vip struct {
		Label struct {
			LabelTheme string `json:"label_theme"`
			Text       string `json:"text"`
		} `json:"label"`
	} `json:"vip"`
}

// CommentPage is one page of the paginated comment list.
type CommentPage struct {
	Replies []CommentNode `json:"replies"`
	Cursor  CommentCursor `json:"cursor"`
}

// CommentCursor carries the server's pagination state for comments.
type CommentCursor struct {
	IsEnd           bool `json:"is_end"`
	PaginationReply struct {
		NextOffset string `json:"next_offset"`
	} `json:"pagination_reply"`
}

// ReactionItem is one forward/like entry. The user block is sometimes
// nested and sometimes inlined, and the action is either a string label or
// a numeric code.
type ReactionItem struct {
	User   *ReactionUser   `json:"user"`
	Mid    FlexInt64       `json:"mid"`
	UID    FlexInt64       `json:"uid"`
	Name   string          `json:"name"`
	Uname  string          `json:"uname"`
	Face   string          `json:"face"`
	Avatar string          `json:"avatar"`
	Action json.RawMessage `json:"action"`
	Type   json.RawMessage `json:"type"`
}

// ReactionUser is the nested user block of a reaction item.
type ReactionUser struct {
	Mid    FlexInt64 `json:"mid"`
	UID    FlexInt64 `json:"uid"`
	Name   string    `json:"name"`
	Uname  string    `json:"uname"`
	Face   string    `json:"face"`
	Avatar string    `json:"avatar"`
}

// ReactionPage is one page of the paginated reaction list.
type ReactionPage struct {
	Items   []ReactionItem `json:"items"`
	HasMore bool           `json:"has_more"`
	Offset  string         `json:"offset"`
}
