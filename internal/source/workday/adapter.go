package workday

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/source"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize   = 20
	maxSearchPages    = 10
	detailConcurrency = 5
)

// Config holds the tenant coordinates for one Workday-backed career site.
// Every Workday board exposes the same CXS API; only these values differ.
type Config struct {
	Name    string // source name used in the run ledger
	Company string // display company name postings are recorded under
	BaseURL string // e.g. https://acme.wd5.myworkdayjobs.com
	Tenant  string // e.g. acme
	Site    string // e.g. External_Careers
}

// Adapter fetches postings from a Workday CXS tenant. It is read-only: the
// coordinator owns every store write.
type Adapter struct {
	cfg     Config
	client  *resty.Client
	limiter *source.HostLimiter
	log     *logger.Logger
}

// New creates a workday adapter for one tenant.
func New(cfg Config, limiter *source.HostLimiter, log *logger.Logger) *Adapter {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(20 * time.Second)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	return &Adapter{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		log:     log,
	}
}

// Name returns the stable source identifier.
func (a *Adapter) Name() string { return a.cfg.Name }

// Company returns the display company name.
func (a *Adapter) Company() string { return a.cfg.Company }

type searchRequest struct {
	AppliedFacets map[string]interface{} `json:"appliedFacets"`
	SearchText    string                 `json:"searchText"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

type searchResponse struct {
	Total       int             `json:"total"`
	JobPostings []searchPosting `json:"jobPostings"`
}

type searchPosting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

type detailResponse struct {
	JobPostingInfo struct {
		ID             string `json:"id"`
		JobReqID       string `json:"jobReqId"`
		Title          string `json:"title"`
		JobDescription string `json:"jobDescription"`
		Location       string `json:"location"`
		PostedOn       string `json:"postedOn"`
		StartDate      string `json:"startDate"`
		TimeType       string `json:"timeType"`
		ExternalURL    string `json:"externalUrl"`
	} `json:"jobPostingInfo"`
}

// Fetch runs one search per role query against the tenant's CXS jobs endpoint
// and resolves each hit's detail page on a bounded worker pool. Records whose
// posted date falls before the lookback cutoff are dropped.
func (a *Adapter) Fetch(ctx context.Context, roleQueries []string, lookbackDays int) (map[string][]source.RawRecord, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -lookbackDays)
	results := make(map[string][]source.RawRecord, len(roleQueries))

	for _, query := range roleQueries {
		records, err := a.fetchRole(ctx, query, cutoff)
		if err != nil {
			return nil, fmt.Errorf("workday search %q for %s: %w", query, a.cfg.Company, err)
		}
		results[query] = records
	}

	return results, nil
}

func (a *Adapter) fetchRole(ctx context.Context, query string, cutoff time.Time) ([]source.RawRecord, error) {
	hits, err := a.search(ctx, query)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		records []source.RawRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)

	for _, hit := range hits {
		g.Go(func() error {
			rec, err := a.resolveDetail(gctx, hit, cutoff)
			if err != nil {
				// A single unreachable detail page is not a source failure.
				a.log.WithFields(logger.Fields{
					"source": a.cfg.Name,
					"path":   hit.ExternalPath,
				}).WithError(err).Warn("Failed to fetch posting detail")
				return nil
			}
			if rec == nil {
				return nil
			}
			mu.Lock()
			records = append(records, *rec)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (a *Adapter) search(ctx context.Context, query string) ([]searchPosting, error) {
	searchURL := fmt.Sprintf("/wday/cxs/%s/%s/jobs", a.cfg.Tenant, a.cfg.Site)

	var hits []searchPosting
	seen := make(map[string]struct{})

	for page := 0; page < maxSearchPages; page++ {
		if err := a.limiter.WaitURL(ctx, a.cfg.BaseURL); err != nil {
			return nil, err
		}

		var body searchResponse
		resp, err := a.client.R().
			SetContext(ctx).
			SetBody(searchRequest{
				AppliedFacets: map[string]interface{}{},
				SearchText:    query,
				Limit:         defaultPageSize,
				Offset:        page * defaultPageSize,
			}).
			SetResult(&body).
			Post(searchURL)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("search returned status %d", resp.StatusCode())
		}

		for _, hit := range body.JobPostings {
			if hit.ExternalPath == "" {
				continue
			}
			if _, dup := seen[hit.ExternalPath]; dup {
				continue
			}
			seen[hit.ExternalPath] = struct{}{}
			hits = append(hits, hit)
		}

		if (page+1)*defaultPageSize >= body.Total || len(body.JobPostings) == 0 {
			break
		}
	}

	return hits, nil
}

func (a *Adapter) resolveDetail(ctx context.Context, hit searchPosting, cutoff time.Time) (*source.RawRecord, error) {
	detailURL := fmt.Sprintf("/wday/cxs/%s/%s%s", a.cfg.Tenant, a.cfg.Site, hit.ExternalPath)

	if err := a.limiter.WaitURL(ctx, a.cfg.BaseURL); err != nil {
		return nil, err
	}

	var body detailResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(detailURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("detail returned status %d", resp.StatusCode())
	}

	info := body.JobPostingInfo

	datePosted := normalizeDate(info.StartDate)
	if datePosted == "" {
		datePosted = normalizeDate(info.PostedOn)
	}
	if datePosted != "" {
		if posted, err := time.Parse("2006-01-02", datePosted); err == nil && posted.Before(cutoff) {
			return nil, nil
		}
	}

	externalID := info.JobReqID
	if externalID == "" {
		externalID = extractIDFromPath(hit.ExternalPath)
	}

	externalURL := info.ExternalURL
	if externalURL == "" {
		externalURL = a.cfg.BaseURL + hit.ExternalPath
	}

	location := info.Location
	if location == "" {
		location = hit.LocationsText
	}

	return &source.RawRecord{
		ExternalID:     externalID,
		Title:          hit.Title,
		Location:       location,
		URL:            externalURL,
		DatePosted:     datePosted,
		EmploymentType: info.TimeType,
		Description:    trimDescription(info.JobDescription),
		Payload: map[string]interface{}{
			"external_path": hit.ExternalPath,
			"posted_on":     hit.PostedOn,
			"bullet_fields": hit.BulletFields,
		},
	}, nil
}

// normalizeDate reduces Workday's assorted timestamp formats to an ISO date
// string, or empty when unparseable.
func normalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return ""
}

// extractIDFromPath pulls the requisition ID out of an externalPath like
// /job/Some-Location/Title_JR123456-1.
func extractIDFromPath(path string) string {
	seg := path
	if idx := strings.LastIndex(seg, "/"); idx != -1 {
		seg = seg[idx+1:]
	}
	if idx := strings.LastIndex(seg, "_"); idx != -1 {
		seg = seg[idx+1:]
	}
	return seg
}

// trimDescription extracts the text content from the posting's HTML body and
// caps the stored description length; full payloads stay in raw_payload.
func trimDescription(html string) string {
	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		text = doc.Text()
	}
	words := strings.Fields(text)
	if len(words) > 250 {
		words = words[:250]
		return strings.Join(words, " ") + "..."
	}
	return strings.Join(words, " ")
}
