package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
	"github.com/kmorrow0/edge-alert-bot/internal/feed"
	"github.com/kmorrow0/edge-alert-bot/internal/models"
	"github.com/kmorrow0/edge-alert-bot/internal/storage"
	"github.com/kmorrow0/edge-alert-bot/internal/util"
	"github.com/kmorrow0/edge-alert-bot/internal/validator"
)

// relativeAgeRegex matches the feed's coarse age strings, "Posted 3d ago".
// Posts younger than a day render as "now"/"2h ago" and deliberately do not
// match: an unparseable age means "very recent", never "old enough to stop".
var relativeAgeRegex = regexp.MustCompile(`^Posted (\d+)([dwmy]) ago`)

// tooltipTimeFormats are tried in order against the created-at tooltip
// attribute when the site renders an absolute timestamp there.
var tooltipTimeFormats = []string{
	time.RFC3339,
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
}

// Harvester pages through the feed until the lookback window is exhausted
// and upserts every rendered post into the repository.
type Harvester struct {
	source       feed.Source
	repo         storage.PostRepository
	selectors    feed.FeedSelectors
	validate     *validator.Validator
	lookbackDays int
	limiter      *rate.Limiter
}

func New(source feed.Source, repo storage.PostRepository, selectors feed.SelectorConfig, cfg *config.Config) *Harvester {
	return &Harvester{
		source:       source,
		repo:         repo,
		selectors:    selectors.Feed,
		validate:     validator.New(),
		lookbackDays: cfg.LookbackDays,
		// One render every couple of seconds is polite and still far faster
		// than the lazy loader needs.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Harvest runs one complete pagination pass over the currently rendered feed
// and returns how many posts were created and how many were updated. A hard
// upstream failure aborts the pass; the next scheduled cycle starts from a
// cold pagination state.
func (h *Harvester) Harvest(ctx context.Context) (newCount, updatedCount int, err error) {
	doc, err := h.loadAllPosts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load feed posts: %w", err)
	}

	var skipped int
	var upsertErr error
	doc.Find(h.selectors.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		post, ok := h.extractPost(s)
		if !ok {
			skipped++
			return true
		}

		exists, err := h.repo.Exists(ctx, post.ID)
		if err != nil {
			upsertErr = fmt.Errorf("check existence of post %s: %w", post.ID, err)
			return false
		}
		if exists {
			// ErrNotFound here means the post vanished between the existence
			// check and the write. That is a consistency bug and aborts the
			// pass rather than being swallowed.
			if err := h.repo.Update(ctx, post); err != nil {
				upsertErr = fmt.Errorf("update post %s: %w", post.ID, err)
				return false
			}
			updatedCount++
		} else {
			if err := h.repo.Create(ctx, post); err != nil {
				upsertErr = fmt.Errorf("create post %s: %w", post.ID, err)
				return false
			}
			newCount++
		}
		return true
	})
	if upsertErr != nil {
		return newCount, updatedCount, upsertErr
	}

	slog.Info("Harvest pass finished", "new", newCount, "updated", updatedCount, "skipped", skipped)
	return newCount, updatedCount, nil
}

// loadAllPosts scrolls the feed until one of the termination conditions
// holds, then returns the final rendered document:
//  1. the last post's age is in weeks/months/years,
//  2. the last post's age in days exceeds the lookback window,
//  3. a render attempt did not increase the post count.
func (h *Harvester) loadAllPosts(ctx context.Context) (*goquery.Document, error) {
	doc, err := h.capture(ctx)
	if err != nil {
		return nil, err
	}

	for {
		items := doc.Find(h.selectors.Item)
		count := items.Length()
		if count == 0 {
			return doc, nil
		}

		ageText := strings.TrimSpace(items.Last().Find(h.selectors.CreatedAt).Text())
		if value, unit, ok := parseRelativeAge(ageText); ok {
			if unit != "d" || value > h.lookbackDays {
				return doc, nil
			}
		}

		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if err := h.source.RenderNextPage(ctx); err != nil {
			return nil, fmt.Errorf("render next page: %w", err)
		}

		next, err := h.capture(ctx)
		if err != nil {
			return nil, err
		}
		if next.Find(h.selectors.Item).Length() == count {
			return next, nil
		}
		doc = next
	}
}

func (h *Harvester) capture(ctx context.Context) (*goquery.Document, error) {
	html, err := h.source.CaptureHTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered feed: %w", err)
	}
	return doc, nil
}

// extractPost pulls one post out of a rendered feed element. A post missing
// its id or permalink is a malformed render, not a real post; it is logged
// and skipped without affecting the rest of the pass.
func (h *Harvester) extractPost(s *goquery.Selection) (models.Post, bool) {
	sel := h.selectors

	post := models.Post{
		ID:          strings.TrimSpace(s.AttrOr(sel.PostIDAttr, "")),
		Author:      strings.TrimSpace(s.Find(sel.Author).First().Text()),
		Title:       strings.TrimSpace(s.Find(sel.Title).First().Text()),
		Description: strings.TrimSpace(s.Find(sel.Description).First().Text()),
		Category:    strings.TrimSpace(s.Find(sel.Category).First().Text()),
		Likes:       util.SafeAtoi(util.CleanNumericString(s.Find(sel.LikeCount).First().Text())),
		Comments:    util.SafeAtoi(util.CleanNumericString(s.Find(sel.CommentCnt).First().Text())),
	}

	if link, exists := s.Find(sel.PostLink).First().Attr("href"); exists {
		post.Link = strings.TrimSpace(link)
	}

	// Best-effort timestamp from the tooltip attribute. The relative age
	// string ("Posted 3d ago") is not trusted for dating; a post without a
	// parseable tooltip gets its first-seen time at create.
	if tooltip, exists := s.Find(sel.CreatedAt).First().Attr(sel.CreatedAtTitleAttr); exists {
		post.PostedAt = parseTooltipTime(strings.TrimSpace(tooltip))
	}

	if err := h.validate.ValidateStruct(post); err != nil {
		slog.Warn("Skipping malformed post", "id", post.ID, "title", post.Title, "error", err)
		return models.Post{}, false
	}
	return post, true
}

// parseRelativeAge parses "Posted {N}{d|w|m|y} ago". ok is false for any
// other rendering, including sub-day ages.
func parseRelativeAge(s string) (value int, unit string, ok bool) {
	m := relativeAgeRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return value, m[2], true
}

func parseTooltipTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range tooltipTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
