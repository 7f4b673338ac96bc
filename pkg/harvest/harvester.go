// Package harvest drives the paginated crawls that collect lottery
// participants: comment threads and forward/like reactions, with signed
// requests, bounded retry, and a resumable rate-limit boundary.
package harvest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"bililottery/pkg/bilibili"
	"bililottery/pkg/config"
	"bililottery/pkg/errors"
	"bililottery/pkg/logger"
	"bililottery/pkg/normalize"
	"bililottery/pkg/retry"
	"bililottery/pkg/wbi"
)

// ResumeState is the serializable snapshot emitted when a crawl hits the
// rate limit. Handing it back to the same harvester continues the crawl
// as if it had never been interrupted.
type ResumeState struct {
	Cursor          string                  `json:"cursor"`
	HasMore         bool                    `json:"hasMore"`
	ProcessedCount  int                     `json:"processedCount"`
	DuplicateDigest *normalize.DuplicateMap `json:"duplicateDigest"`
}

// InterruptedError wraps a rate-limit failure with the state needed to
// resume. The records gathered before the interruption travel with it.
type InterruptedError struct {
	State *ResumeState
	cause error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("harvest interrupted after %d records: %v", e.State.ProcessedCount, e.cause)
}

func (e *InterruptedError) Unwrap() error { return e.cause }

// Interrupted extracts the resume state from err, if it carries one.
func Interrupted(err error) (*ResumeState, bool) {
	var ie *InterruptedError
	if stderrors.As(err, &ie) {
		return ie.State, true
	}
	return nil, false
}

// Options tunes one crawl invocation.
type Options struct {
	// Progress, if set, is called once per fetched page with the records
	// processed so far and the target total (0 when unknown).
	Progress func(processed, total int)
	// Resume continues a previously interrupted crawl.
	Resume *ResumeState
}

func (o Options) report(processed, total int) {
	if o.Progress != nil {
		o.Progress(processed, total)
	}
}

// Harvester runs comment and reaction crawls against one client/signer
// pair. Safe for use by one crawl at a time; run concurrent crawls on
// separate harvesters sharing the client's throttle controller.
type Harvester struct {
	client    *bilibili.Client
	signer    *wbi.Signer
	retryCfg  retry.Config
	pageSize  int
	pageDelay time.Duration
	log       logger.Logger

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Harvester. cfg may be nil for the default cadence.
func New(client *bilibili.Client, signer *wbi.Signer, cfg *config.HarvestConfig, log logger.Logger) *Harvester {
	if cfg == nil {
		c := config.DefaultConfig().Harvest
		cfg = &c
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Harvester{
		client:    client,
		signer:    signer,
		retryCfg:  retry.Config{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.RetryBaseDelay, Logger: log},
		pageSize:  cfg.PageSize,
		pageDelay: cfg.PageDelay,
		log:       log,
		sleep:     wait,
	}
}

// Comments crawls the full comment area of the resolved target, flattening
// reply trees into one pre-ordered record list. On a rate limit the records
// gathered so far are returned alongside an InterruptedError.
func (h *Harvester) Comments(ctx context.Context, detail *bilibili.Detail, opts Options) ([]normalize.CommentRecord, error) {
	if detail == nil || detail.CommentAreaID == "" || detail.CommentType == 0 {
		return nil, errors.Validation("missing comment target: detail has no comment area id or type")
	}

	cursor := ""
	processed := 0
	dups := normalize.NewDuplicateMap()
	if opts.Resume != nil {
		if !opts.Resume.HasMore {
			return nil, nil
		}
		cursor = opts.Resume.Cursor
		processed = opts.Resume.ProcessedCount
		if opts.Resume.DuplicateDigest != nil {
			dups = opts.Resume.DuplicateDigest
		}
		h.log.InfoWithFields("resuming comment harvest", map[string]interface{}{
			"processed": processed,
			"oid":       detail.CommentAreaID,
		})
	}

	var records []normalize.CommentRecord
	for {
		page, err := h.fetchCommentPage(ctx, detail, cursor)
		if err != nil {
			if errors.IsRateLimit(err) {
				return records, &InterruptedError{
					State: &ResumeState{
						Cursor:          cursor,
						HasMore:         true,
						ProcessedCount:  processed,
						DuplicateDigest: dups,
					},
					cause: err,
				}
			}
			return records, err
		}

		pageRecords := normalize.FlattenComments(page.Replies, dups)
		records = append(records, pageRecords...)
		processed += len(pageRecords)
		opts.report(processed, detail.CommentCount)

		if page.Cursor.IsEnd {
			h.log.InfoWithFields("comment harvest completed", map[string]interface{}{
				"records": processed,
				"oid":     detail.CommentAreaID,
			})
			return records, nil
		}
		next := page.Cursor.PaginationReply.NextOffset
		if next == "" {
			return records, errors.Validation("server reported more comment pages but sent no cursor")
		}
		cursor = next

		if err := h.sleep(ctx, h.pageDelay); err != nil {
			return records, err
		}
	}
}

func (h *Harvester) fetchCommentPage(ctx context.Context, detail *bilibili.Detail, cursor string) (*bilibili.CommentPage, error) {
	var page bilibili.CommentPage
	err := retry.Do(ctx, h.retryCfg, func(ctx context.Context) error {
		params := map[string]string{
			"type": strconv.Itoa(detail.CommentType),
			"oid":  detail.CommentAreaID,
			"mode": "2",
			"ps":   strconv.Itoa(h.pageSize),
		}
		if cursor != "" {
			offset, err := json.Marshal(struct {
				Offset string `json:"offset"`
			}{cursor})
			if err != nil {
				return err
			}
			params["pagination_str"] = string(offset)
		}
		signed, err := h.signer.Sign(ctx, params)
		if err != nil {
			return err
		}
		page = bilibili.CommentPage{}
		return h.client.GetJSON(ctx, h.client.Endpoints().CommentList, signed, &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Reactions crawls the forward/like list of a dynamic. The crawl stops when
// the server signals no more pages or the detail's forward+like total has
// been reached, whichever comes first.
func (h *Harvester) Reactions(ctx context.Context, dynamicID string, detail *bilibili.Detail, opts Options) ([]normalize.ReactionRecord, error) {
	if dynamicID == "" {
		return nil, errors.Validation("missing dynamic id for reaction harvest")
	}
	target := 0
	if detail != nil {
		target = detail.ForwardCount + detail.LikeCount
	}

	cursor := ""
	processed := 0
	if opts.Resume != nil {
		if !opts.Resume.HasMore {
			return nil, nil
		}
		cursor = opts.Resume.Cursor
		processed = opts.Resume.ProcessedCount
		h.log.InfoWithFields("resuming reaction harvest", map[string]interface{}{
			"processed":  processed,
			"dynamic_id": dynamicID,
		})
	}

	var records []normalize.ReactionRecord
	for {
		page, err := h.fetchReactionPage(ctx, dynamicID, cursor)
		if err != nil {
			if errors.IsRateLimit(err) {
				return records, &InterruptedError{
					State: &ResumeState{
						Cursor:         cursor,
						HasMore:        true,
						ProcessedCount: processed,
					},
					cause: err,
				}
			}
			return records, err
		}

		for i := range page.Items {
			records = append(records, normalize.NormalizeReaction(&page.Items[i]))
		}
		processed += len(page.Items)
		opts.report(processed, target)

		if !page.HasMore || processed >= target {
			h.log.InfoWithFields("reaction harvest completed", map[string]interface{}{
				"records":    processed,
				"dynamic_id": dynamicID,
			})
			return records, nil
		}
		cursor = page.Offset

		if err := h.sleep(ctx, h.pageDelay); err != nil {
			return records, err
		}
	}
}

func (h *Harvester) fetchReactionPage(ctx context.Context, dynamicID, cursor string) (*bilibili.ReactionPage, error) {
	var page bilibili.ReactionPage
	err := retry.Do(ctx, h.retryCfg, func(ctx context.Context) error {
		params := map[string]string{"id": dynamicID}
		if cursor != "" {
			params["offset"] = cursor
		}
		signed, err := h.signer.Sign(ctx, params)
		if err != nil {
			return err
		}
		page = bilibili.ReactionPage{}
		return h.client.GetJSON(ctx, h.client.Endpoints().ReactionList, signed, &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
