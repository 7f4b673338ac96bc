package bilibili

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"

	"bililottery/pkg/errors"
)

var (
	bvidPattern    = regexp.MustCompile(`(?i)^BV[0-9A-Za-z]+$`)
	dynamicPattern = regexp.MustCompile(`^\d+$`)
)

// maxDescriptionLen caps the description carried in a Detail; anything
// longer is truncated with an ellipsis.
const maxDescriptionLen = 200

// FetchLoginUser returns the identity of the logged-in account.
func (c *Client) FetchLoginUser(ctx context.Context) (*LoginUser, error) {
	var nav navData
	if err := c.GetJSON(ctx, c.endpoints.Nav, nil, &nav); err != nil {
		return nil, err
	}
	return &LoginUser{
		ID:       nav.Mid.Int64(),
		UserName: nav.Uname,
		Avatar:   nav.Face,
	}, nil
}

// WbiKeys fetches the two wbi image URLs the signer derives its mixin key
// from. Shaped to plug straight into wbi.NewSigner.
func (c *Client) WbiKeys(ctx context.Context) (string, string, error) {
	var nav navData
	if err := c.GetJSON(ctx, c.endpoints.Nav, nil, &nav); err != nil {
		return "", "", err
	}
	return nav.WbiImg.ImgURL, nav.WbiImg.SubURL, nil
}

// FetchDetail resolves a BV id or a numeric dynamic id into the harvest
// target descriptor.
func (c *Client) FetchDetail(ctx context.Context, id string) (*Detail, error) {
	if id == "" {
		return nil, errors.Validation("missing target id: expected a BV id or a dynamic id")
	}

	if bvidPattern.MatchString(id) {
		return c.fetchVideoDetail(ctx, id)
	}
	if !dynamicPattern.MatchString(id) {
		return nil, errors.Validation("invalid target id: expected a BV id or a numeric dynamic id")
	}
	return c.fetchDynamicDetail(ctx, id)
}

func (c *Client) fetchVideoDetail(ctx context.Context, bvid string) (*Detail, error) {
	var video videoDetail
	if err := c.GetJSON(ctx, c.endpoints.VideoDetail, map[string]string{"bvid": bvid}, &video); err != nil {
		return nil, err
	}
	if video.Aid == 0 {
		return nil, errors.Validation("video detail unavailable for " + bvid)
	}
	return &Detail{
		AuthorID:      video.Owner.Mid.Int64(),
		AuthorName:    video.Owner.Name,
		AuthorAvatar:  video.Owner.Face,
		Description:   truncateDescription(video.Title),
		CommentCount:  video.Stat.Reply,
		ForwardCount:  video.Stat.Share,
		LikeCount:     video.Stat.Like,
		CommentAreaID: strconv.FormatInt(video.Aid, 10),
		CommentType:   CommentTypeVideo,
		SourceType:    "video",
	}, nil
}

func (c *Client) fetchDynamicDetail(ctx context.Context, id string) (*Detail, error) {
	detail, err := c.fetchPrimaryDynamicDetail(ctx, id)
	if err == nil && detail != nil {
		return detail, nil
	}
	if err != nil {
		if errors.IsRateLimit(err) {
			return nil, err
		}
		c.log.WarnWithFields("primary dynamic detail failed, falling back to legacy endpoint", map[string]interface{}{
			"dynamic_id": id,
			"error":      err.Error(),
		})
	}
	return c.fetchLegacyDynamicDetail(ctx, id)
}

func (c *Client) fetchPrimaryDynamicDetail(ctx context.Context, id string) (*Detail, error) {
	var dynamic dynamicDetail
	if err := c.GetJSON(ctx, c.endpoints.DynamicDetail, map[string]string{"id": id}, &dynamic); err != nil {
		return nil, err
	}
	item := dynamic.Item
	if item == nil {
		return nil, nil
	}

	description := ""
	if item.Modules.Dynamic.Desc != nil {
		description = item.Modules.Dynamic.Desc.Text
	}
	return &Detail{
		AuthorID:      item.Modules.Author.Mid.Int64(),
		AuthorName:    item.Modules.Author.Name,
		AuthorAvatar:  item.Modules.Author.Face,
		Description:   truncateDescription(description),
		CommentCount:  item.Modules.Stat.Comment.Count,
		ForwardCount:  item.Modules.Stat.Forward.Count,
		LikeCount:     item.Modules.Stat.Like.Count,
		CommentAreaID: item.Basic.CommentIDStr,
		CommentType:   item.Basic.CommentType,
		SourceType:    "dynamic",
	}, nil
}

func (c *Client) fetchLegacyDynamicDetail(ctx context.Context, id string) (*Detail, error) {
	var legacy legacyDynamicDetail
	if err := c.GetJSON(ctx, c.endpoints.LegacyDynamicDetail, map[string]string{"dynamic_id": id}, &legacy); err != nil {
		return nil, err
	}
	if legacy.Card == nil || legacy.Card.Desc == nil {
		return nil, errors.Validation("dynamic detail unavailable for " + id)
	}
	desc := legacy.Card.Desc

	// The embedded card document is known to arrive malformed for some
	// dynamic types; a decode failure degrades to an empty card rather
	// than failing the harvest.
	var card legacyCard
	if legacy.Card.Card != "" {
		if err := json.Unmarshal([]byte(legacy.Card.Card), &card); err != nil {
			c.log.WarnWithFields("legacy dynamic card payload undecodable", map[string]interface{}{
				"dynamic_id": id,
				"error":      errors.Parse(err.Error()),
			})
		}
	}

	return &Detail{
		AuthorID:      desc.UserProfile.Info.UID.Int64(),
		AuthorName:    desc.UserProfile.Info.Uname,
		AuthorAvatar:  desc.UserProfile.Info.Face,
		Description:   truncateDescription(card.Item.Description),
		CommentCount:  desc.Comment,
		ForwardCount:  desc.Repost,
		LikeCount:     desc.Like,
		CommentAreaID: desc.RidStr,
		CommentType:   MapLegacyDynamicType(desc.Type),
		SourceType:    "dynamic",
	}, nil
}

func truncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= maxDescriptionLen {
		return s
	}
	return string(runes[:maxDescriptionLen]) + "..."
}
