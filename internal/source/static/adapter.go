package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/marcusw/jobtrack/internal/source"
)

// ManifestRecord is one posting in a static manifest file.
type ManifestRecord struct {
	ExternalID     string   `json:"external_id"`
	Title          string   `json:"title"`
	Location       string   `json:"location"`
	URL            string   `json:"url"`
	DatePosted     string   `json:"date_posted"`
	EmploymentType string   `json:"employment_type"`
	Description    string   `json:"description"`
	Roles          []string `json:"roles"`
}

// Manifest is the on-disk shape of a static source: a company plus its
// records, each tagged with the role queries it should answer to.
type Manifest struct {
	Company string           `json:"company"`
	Records []ManifestRecord `json:"records"`
}

// Adapter serves postings from a local JSON manifest. Used for development
// and as a deterministic source in integration-style tests.
type Adapter struct {
	name     string
	company  string
	path     string
	manifest *Manifest
}

// New creates a static adapter backed by the manifest at path. The manifest
// is read lazily on first Fetch so construction never touches the disk.
func New(name, company, path string) *Adapter {
	return &Adapter{name: name, company: company, path: path}
}

// Name returns the stable source identifier.
func (a *Adapter) Name() string { return a.name }

// Company returns the display company name.
func (a *Adapter) Company() string { return a.company }

// Fetch returns manifest records grouped by role query. A record answers to a
// role query when the query appears in its roles list (case-insensitive) or
// when it lists no roles at all.
func (a *Adapter) Fetch(ctx context.Context, roleQueries []string, lookbackDays int) (map[string][]source.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.load(); err != nil {
		return nil, err
	}

	results := make(map[string][]source.RawRecord, len(roleQueries))
	for _, query := range roleQueries {
		var records []source.RawRecord
		for _, rec := range a.manifest.Records {
			if !matchesRole(rec.Roles, query) {
				continue
			}
			records = append(records, source.RawRecord{
				ExternalID:     rec.ExternalID,
				Title:          rec.Title,
				Location:       rec.Location,
				URL:            rec.URL,
				DatePosted:     rec.DatePosted,
				EmploymentType: rec.EmploymentType,
				Description:    rec.Description,
				Payload: map[string]interface{}{
					"manifest": a.path,
				},
			})
		}
		results[query] = records
	}
	return results, nil
}

func (a *Adapter) load() error {
	if a.manifest != nil {
		return nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", a.path, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", a.path, err)
	}
	if manifest.Company == "" {
		manifest.Company = a.company
	}
	a.manifest = &manifest
	return nil
}

func matchesRole(roles []string, query string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if strings.EqualFold(r, query) {
			return true
		}
	}
	return false
}
