package taxonomy

import (
	"context"
	"strings"
	"sync"

	"github.com/marcusw/jobtrack/internal/domain"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
)

// DefaultRoleName is the fallback role for titles the classifier cannot place.
const DefaultRoleName = "Software Engineer"

// minRoleLength is the shortest cleaned string accepted as a new vocabulary entry.
const minRoleLength = 3

// seedVocabulary is the starting canonical taxonomy. The vocabulary only ever
// grows from here; unanticipated titles are admitted rather than discarded.
var seedVocabulary = []string{
	"Software Engineer",
	"Data Scientist",
	"Product Manager",
	"UX Designer",
	"DevOps Engineer",
	"Full Stack Developer",
	"Frontend Engineer",
	"Backend Engineer",
	"Machine Learning Engineer",
	"QA Engineer",
	"Data Engineer",
	"Site Reliability Engineer",
	"Technical Program Manager",
	"Research Scientist",
	"Security Engineer",
	"Cloud Engineer",
	"AI Engineer",
	"Business Analyst",
	"Technical Writer",
	"Systems Engineer",
	"Data Analyst",
	"Python Engineer",
	"SQL Developer",
	"Data Administrator",
	"MLOps Engineer",
	"AI Researcher",
}

// stopTerms are strings too generic to become taxonomy entries.
var stopTerms = map[string]struct{}{
	"job":      {},
	"general":  {},
	"position": {},
	"opening":  {},
}

// Classifier normalizes free-text role strings into the canonical taxonomy.
// All vocabulary reads and writes go through one mutex, so concurrent
// classification never races on vocabulary growth; role rows themselves are
// created read-through via the role repository.
type Classifier struct {
	roles *repository.RoleRepository
	log   *logger.Logger

	mu      sync.Mutex
	byLower map[string]string // lower-cased name -> canonical name
	ordered []string          // canonical names in admission order
}

// NewClassifier creates a classifier seeded with the built-in vocabulary.
func NewClassifier(roles *repository.RoleRepository, log *logger.Logger) *Classifier {
	c := &Classifier{
		roles:   roles,
		log:     log,
		byLower: make(map[string]string, len(seedVocabulary)),
	}
	for _, name := range seedVocabulary {
		c.admit(name)
	}
	return c
}

// admit adds a name to the vocabulary. Caller must hold mu (or be the constructor).
func (c *Classifier) admit(name string) {
	lower := strings.ToLower(name)
	if _, ok := c.byLower[lower]; ok {
		return
	}
	c.byLower[lower] = name
	c.ordered = append(c.ordered, name)
}

// Warm loads previously persisted role names into the vocabulary so growth
// from earlier processes survives a restart.
func (c *Classifier) Warm(ctx context.Context) error {
	names, err := c.roles.ListNames(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, name := range names {
		c.admit(name)
	}
	c.mu.Unlock()
	return nil
}

// Canonicalize maps a raw role string onto a canonical Role, growing the
// vocabulary when the string is specific enough to stand on its own.
// The resolution order is: exact match, substring match (a canonical name
// contained in the raw string), admission as a new entry, default role.
func (c *Classifier) Canonicalize(ctx context.Context, raw string) (*domain.Role, error) {
	name := c.resolve(raw)
	return c.roles.GetOrCreate(ctx, name)
}

// resolve runs the matching rules against the vocabulary and returns the
// canonical name. It performs no store access.
func (c *Classifier) resolve(raw string) string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return DefaultRoleName
	}
	lower := strings.ToLower(cleaned)

	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.byLower[lower]; ok {
		return name
	}

	// Substring pass walks the vocabulary in admission order so repeated
	// inputs always map to the same entry.
	for _, name := range c.ordered {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}

	if _, stop := stopTerms[lower]; !stop && len(cleaned) > minRoleLength {
		c.log.WithField("role", cleaned).Info("Adding new taxonomy role")
		c.admit(cleaned)
		return cleaned
	}

	return DefaultRoleName
}

// VocabularySize reports the current number of canonical entries.
func (c *Classifier) VocabularySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ordered)
}
