package harvest

import (
	"context"
	"strconv"

	"bililottery/pkg/errors"
	"bililottery/pkg/normalize"
	"bililottery/pkg/retry"
)

// Relation attribute codes as the API reports them.
const (
	RelationNone      = 0
	RelationFollowing = 2
	RelationMutual    = 6
	RelationBlocked   = 128
)

// Relation is the outcome of a follower check against one account.
type Relation struct {
	RelationType int    `json:"relation_type"`
	Description  string `json:"description"`
	RelationDate string `json:"relation_date"`
}

// CheckRelation reports how the given account relates to the logged-in
// user: fan, mutual, blocked, or not following.
func (h *Harvester) CheckRelation(ctx context.Context, mid int64) (*Relation, error) {
	if mid <= 0 {
		return nil, errors.Validation("missing user id for relation check")
	}

	var data struct {
		BeRelation *struct {
			Attribute int   `json:"attribute"`
			Mtime     int64 `json:"mtime"`
		} `json:"be_relation"`
	}
	err := retry.Do(ctx, h.retryCfg, func(ctx context.Context) error {
		signed, err := h.signer.Sign(ctx, map[string]string{
			"mid": strconv.FormatInt(mid, 10),
		})
		if err != nil {
			return err
		}
		data.BeRelation = nil
		return h.client.GetJSON(ctx, h.client.Endpoints().Relation, signed, &data)
	})
	if err != nil {
		return nil, err
	}
	if data.BeRelation == nil {
		return nil, errors.Validation("relation data missing from response")
	}

	return &Relation{
		RelationType: data.BeRelation.Attribute,
		Description:  describeRelation(data.BeRelation.Attribute),
		RelationDate: normalize.FormatTimestamp(data.BeRelation.Mtime),
	}, nil
}

func describeRelation(attribute int) string {
	switch attribute {
	case RelationFollowing:
		return "是粉丝"
	case RelationMutual:
		return "已互粉"
	case RelationBlocked:
		return "已被拉黑"
	default:
		return "不是粉丝"
	}
}
