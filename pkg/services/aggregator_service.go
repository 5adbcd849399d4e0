package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/config"
	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

// DataAggregator fans one resolved question out to the sources its intent
// selects and merges the results into a provenance-tagged bundle. Source
// failures degrade the bundle instead of failing the call.
type DataAggregator interface {
	Aggregate(ctx context.Context, question string, analysis *models.IntentAnalysis) (*models.Bundle, error)
}

type dataAggregator struct {
	documents   repositories.DocumentRepository
	knowledge   repositories.KnowledgeRepository
	orgs        repositories.OrganizationRepository
	constraints *ConstraintRules
	cache       *redis.Client // nil disables caching
	cfg         config.AggregatorConfig
	logger      *zap.Logger
}

// NewDataAggregator creates a new DataAggregator. cache may be nil.
func NewDataAggregator(
	documents repositories.DocumentRepository,
	knowledge repositories.KnowledgeRepository,
	orgs repositories.OrganizationRepository,
	constraints *ConstraintRules,
	cache *redis.Client,
	cfg config.AggregatorConfig,
	logger *zap.Logger,
) DataAggregator {
	return &dataAggregator{
		documents:   documents,
		knowledge:   knowledge,
		orgs:        orgs,
		constraints: constraints,
		cache:       cache,
		cfg:         cfg,
		logger:      logger.Named("aggregator"),
	}
}

var _ DataAggregator = (*dataAggregator)(nil)

// fragment is the per-source slice of a bundle. It is what gets cached.
type fragment struct {
	Documents        []models.Document       `json:"documents,omitempty"`
	KnowledgeEntries []models.KnowledgeEntry `json:"knowledge_entries,omitempty"`
	OrganizationInfo *models.Organization    `json:"organization_info,omitempty"`
	DepartmentInfo   *models.Department      `json:"department_info,omitempty"`
}

type sourceOutcome struct {
	source string
	frag   fragment
	err    error
}

func (a *dataAggregator) Aggregate(ctx context.Context, question string, analysis *models.IntentAnalysis) (*models.Bundle, error) {
	// Constraint rules win outright: no fan-out, no cache, no synthesis input
	// beyond the canned answer.
	if answer, ok := a.constraints.Match(question); ok {
		a.logger.Debug("Constraint rule answered question directly")
		return &models.Bundle{
			ConstraintAnswer: answer,
			Sources:          []string{models.SourceConstraints},
		}, nil
	}

	sources := a.selectSources(analysis)
	if len(sources) == 0 {
		return &models.Bundle{Sources: []string{}}, nil
	}

	outcomes := make(chan sourceOutcome, len(sources))
	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			// Each source gets its own deadline so one slow backend cannot
			// stall the whole turn.
			sourceCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout())
			defer cancel()
			frag, err := a.fetch(sourceCtx, source, question, analysis)
			outcomes <- sourceOutcome{source: source, frag: frag, err: err}
		}(source)
	}
	wg.Wait()
	close(outcomes)

	bundle := &models.Bundle{Sources: []string{}}
	for outcome := range outcomes {
		if outcome.err != nil {
			a.logger.Warn("Source degraded",
				zap.String("source", outcome.source),
				zap.String("error", logging.SanitizeError(outcome.err)))
			bundle.Partial = true
			continue
		}
		mergeFragment(bundle, outcome.frag)
		bundle.Sources = append(bundle.Sources, outcome.source)
	}
	sort.Strings(bundle.Sources)

	return bundle, nil
}

// selectSources maps the classified target, intent, and hints onto source
// tags. The target names the base selection; the intent and hints only add
// sources, so a target/intent mismatch still queries the target's source.
func (a *dataAggregator) selectSources(analysis *models.IntentAnalysis) []string {
	if analysis.Intent == models.IntentBlocked {
		return nil
	}

	// Roster enumeration is not a text search over either corpus.
	if analysis.Intent == models.IntentEnumerateOrganizations {
		sources := []string{models.SourceOrganizations}
		if analysis.Department != "" {
			sources = append(sources, models.SourceDepartments)
		}
		return sources
	}

	var sources []string
	switch analysis.Target {
	case models.TargetDocuments:
		sources = []string{models.SourceDocuments}
	case models.TargetKnowledge:
		sources = []string{models.SourceKnowledge}
	default:
		sources = []string{models.SourceDocuments, models.SourceKnowledge}
	}

	// The intent widens the base when it favors a source the target left out.
	switch analysis.Intent {
	case models.IntentEnumerateDocuments:
		if !containsSource(sources, models.SourceDocuments) {
			sources = append(sources, models.SourceDocuments)
		}
	case models.IntentRecallFact:
		if !containsSource(sources, models.SourceKnowledge) {
			sources = append(sources, models.SourceKnowledge)
		}
	}

	// Hints widen the selection regardless of intent.
	if analysis.Company != "" {
		sources = append(sources, models.SourceOrganizations)
	}
	if analysis.Department != "" {
		sources = append(sources, models.SourceDepartments)
	}

	return sources
}

// fetch returns one source's fragment, reading through the cache when
// available.
func (a *dataAggregator) fetch(ctx context.Context, source, question string, analysis *models.IntentAnalysis) (fragment, error) {
	key := a.cacheKey(source, question, analysis)
	if frag, ok := a.cacheGet(ctx, key); ok {
		return frag, nil
	}

	var frag fragment
	var err error
	switch source {
	case models.SourceDocuments:
		frag.Documents, err = a.documents.Search(ctx, question, models.SearchFilters{
			OrganizationCode: analysis.Company,
			Category:         analysis.Category,
			Department:       analysis.Department,
			Limit:            a.cfg.MaxResultsPerSource,
		})
	case models.SourceKnowledge:
		frag.KnowledgeEntries, err = a.knowledge.Search(ctx, question, a.cfg.MaxResultsPerSource)
	case models.SourceOrganizations:
		if analysis.Company != "" {
			frag.OrganizationInfo, err = a.orgs.GetByCode(ctx, analysis.Company)
		} else {
			var all []models.Organization
			all, err = a.orgs.List(ctx)
			if err == nil {
				frag.KnowledgeEntries = organizationsAsKnowledge(all)
			}
		}
	case models.SourceDepartments:
		frag.DepartmentInfo, err = a.lookupDepartment(ctx, analysis)
	default:
		err = fmt.Errorf("unknown source %q", source)
	}
	if err != nil {
		return fragment{}, err
	}

	a.cacheSet(ctx, key, frag)
	return frag, nil
}

func (a *dataAggregator) lookupDepartment(ctx context.Context, analysis *models.IntentAnalysis) (*models.Department, error) {
	if analysis.Department == "" {
		return nil, nil
	}
	var orgID *uuid.UUID
	if analysis.Company != "" {
		org, err := a.orgs.GetByCode(ctx, analysis.Company)
		if err != nil {
			return nil, err
		}
		if org != nil {
			orgID = &org.ID
		}
	}
	return a.orgs.GetDepartment(ctx, orgID, analysis.Department)
}

// cacheKey builds a stable key from the source, the normalized question, and
// the routing hints that change what the source returns.
func (a *dataAggregator) cacheKey(source, question string, analysis *models.IntentAnalysis) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(normalized + "|" + analysis.Company + "|" + analysis.Category + "|" + analysis.Department))
	return fmt.Sprintf("veridoc:agg:%s:%x", source, sum[:16])
}

func (a *dataAggregator) cacheGet(ctx context.Context, key string) (fragment, bool) {
	if a.cache == nil {
		return fragment{}, false
	}
	data, err := a.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			a.logger.Debug("Cache read failed", zap.String("error", logging.SanitizeError(err)))
		}
		return fragment{}, false
	}
	var frag fragment
	if err := json.Unmarshal(data, &frag); err != nil {
		return fragment{}, false
	}
	return frag, true
}

func (a *dataAggregator) cacheSet(ctx context.Context, key string, frag fragment) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(frag)
	if err != nil {
		return
	}
	// A fetched fragment is worth caching even when the requester is gone.
	ctx = context.WithoutCancel(ctx)
	if err := a.cache.Set(ctx, key, data, a.cfg.CacheTTL()).Err(); err != nil {
		a.logger.Debug("Cache write failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func mergeFragment(bundle *models.Bundle, frag fragment) {
	bundle.Documents = append(bundle.Documents, frag.Documents...)
	bundle.KnowledgeEntries = append(bundle.KnowledgeEntries, frag.KnowledgeEntries...)
	if frag.OrganizationInfo != nil {
		bundle.OrganizationInfo = frag.OrganizationInfo
	}
	if frag.DepartmentInfo != nil {
		bundle.DepartmentInfo = frag.DepartmentInfo
	}
}

func containsSource(sources []string, source string) bool {
	for _, s := range sources {
		if s == source {
			return true
		}
	}
	return false
}

// organizationsAsKnowledge renders an organization listing as knowledge
// entries so enumerate_organizations answers flow through the same bundle
// shape.
func organizationsAsKnowledge(orgs []models.Organization) []models.KnowledgeEntry {
	entries := make([]models.KnowledgeEntry, 0, len(orgs))
	for _, org := range orgs {
		entries = append(entries, models.KnowledgeEntry{
			ID:      org.ID,
			Title:   org.Name,
			Content: fmt.Sprintf("Organization %s (code %s)", org.Name, org.Code),
		})
	}
	return entries
}
