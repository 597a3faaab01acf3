package source

import "context"

// RawRecord is the fixed data contract an adapter produces for one posting.
// DatePosted is the board's ISO date string, passed through unparsed; the
// upsert engine owns parsing and the fallback for malformed values.
type RawRecord struct {
	ExternalID     string
	Title          string
	Location       string
	URL            string
	DatePosted     string
	EmploymentType string
	Description    string
	Payload        map[string]interface{}
}

// Adapter defines the interface for job-board data sources. Adapters are
// read-only with respect to the store: they fetch and parse, nothing else.
type Adapter interface {
	// Name returns the stable source identifier used in the run ledger.
	Name() string

	// Company returns the display company name postings are recorded under.
	Company() string

	// Fetch retrieves raw records grouped by role query, one adapter call per
	// cycle. An error fails the whole cycle for this source; partial results
	// alongside an error are discarded by the coordinator.
	Fetch(ctx context.Context, roleQueries []string, lookbackDays int) (map[string][]RawRecord, error)
}
