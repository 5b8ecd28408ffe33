// internal/search/orchestrator.go
package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"placement-backend/internal/affinity"
	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/common/metrics"
	"placement-backend/internal/models"
)

// Search types reported in result metadata.
const (
	SearchTypeOffer = "offer"
	SearchTypeAdHoc = "ad_hoc"
)

// Criteria selects the requirement source: an existing offer, or an ad hoc
// skill list with structural filters.
type Criteria struct {
	OfferID *int64                 `json:"offerId,omitempty"`
	Skills  []models.RequiredSkill `json:"skills,omitempty"`
	Filters Filters                `json:"filters,omitempty"`
}

// Candidate is one ranked entry of a search result.
type Candidate struct {
	Student  models.Student  `json:"student"`
	Affinity affinity.Result `json:"affinity"`
}

// Result is the ranked candidate list plus search metadata.
type Result struct {
	Candidates         []Candidate `json:"candidates"`
	TotalFound         int         `json:"totalFound"`
	ExcludedCandidates int         `json:"excludedCandidates"`
	SearchType         string      `json:"searchType"`
}

// Orchestrator runs candidate searches: resolves requirements, excludes
// students who already applied, scores the remaining pool, and ranks the
// result. No tokens are spent here; revealing a ranked candidate's CV goes
// through the access gateway.
type Orchestrator struct {
	store   Store
	pool    *ElasticPool // optional faster pool source
	workers int
	limit   int
	logger  logger.Logger
}

func NewOrchestrator(store Store, pool *ElasticPool, workers, limit int, log logger.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		store:   store,
		pool:    pool,
		workers: workers,
		limit:   limit,
		logger:  log.WithFields(map[string]interface{}{"component": "candidate-search"}),
	}
}

// Search executes an offer-based or ad hoc candidate search for a company.
func (o *Orchestrator) Search(ctx context.Context, companyID int64, criteria Criteria) (*Result, error) {
	started := time.Now()

	required, profamilyIDs, filters, searchType, err := o.resolveCriteria(ctx, companyID, criteria)
	if err != nil {
		return nil, err
	}

	excluded, err := o.resolveExclusions(ctx, companyID, criteria)
	if err != nil {
		return nil, err
	}

	pool, err := o.activeStudents(ctx, filters)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Student, 0, len(pool))
	excludedCount := 0
	for _, student := range pool {
		if excluded[student.ID] {
			excludedCount++
			continue
		}
		candidates = append(candidates, student)
	}

	ranked := o.scoreCandidates(ctx, candidates, required, profamilyIDs)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Affinity.Level != ranked[j].Affinity.Level {
			return ranked[i].Affinity.Level > ranked[j].Affinity.Level
		}
		return ranked[i].Affinity.Score > ranked[j].Affinity.Score
	})

	metrics.CandidateSearches.WithLabelValues(searchType).Inc()
	metrics.CandidateSearchDuration.WithLabelValues(searchType).Observe(time.Since(started).Seconds())

	o.logger.Info("candidate search completed", map[string]interface{}{
		"companyId":  companyID,
		"searchType": searchType,
		"totalFound": len(ranked),
		"excluded":   excludedCount,
		"durationMs": time.Since(started).Milliseconds(),
	})

	return &Result{
		Candidates:         ranked,
		TotalFound:         len(ranked),
		ExcludedCandidates: excludedCount,
		SearchType:         searchType,
	}, nil
}

// resolveCriteria turns the request into a requirement set. Offer mode loads
// the offer's skills and professional families; ad hoc mode takes them from
// the request. Offers of other companies are off limits.
func (o *Orchestrator) resolveCriteria(ctx context.Context, companyID int64, criteria Criteria) ([]models.RequiredSkill, []int64, Filters, string, error) {
	if criteria.OfferID != nil {
		offer, err := o.store.GetOffer(ctx, *criteria.OfferID)
		if err != nil {
			return nil, nil, Filters{}, "", err
		}
		if offer.CompanyID != companyID {
			return nil, nil, Filters{}, "", apperrors.NewForbiddenError("offer belongs to another company")
		}
		return offer.Skills, offer.ProfamilyIDs, criteria.Filters, SearchTypeOffer, nil
	}

	profamilyIDs := []int64{}
	if criteria.Filters.ProfamilyID != nil {
		profamilyIDs = append(profamilyIDs, *criteria.Filters.ProfamilyID)
	}
	return normalizeSkills(criteria.Skills), profamilyIDs, criteria.Filters, SearchTypeAdHoc, nil
}

// resolveExclusions collects students who already applied: to the specific
// offer in offer mode, to any offer of the company in ad hoc mode.
func (o *Orchestrator) resolveExclusions(ctx context.Context, companyID int64, criteria Criteria) (map[int64]bool, error) {
	if criteria.OfferID != nil {
		return o.store.AppliedStudentIDs(ctx, *criteria.OfferID)
	}
	return o.store.AppliedStudentIDsForCompany(ctx, companyID)
}

// activeStudents reads the candidate pool, preferring Elasticsearch and
// falling back to Postgres on any pool error.
func (o *Orchestrator) activeStudents(ctx context.Context, filters Filters) ([]models.Student, error) {
	if o.pool != nil {
		students, err := o.pool.ActiveStudents(ctx, filters, o.limit)
		if err == nil {
			return students, nil
		}
		o.logger.Warn("elasticsearch pool query failed, falling back to postgres", map[string]interface{}{
			"error": err,
		})
	}
	return o.store.ActiveStudents(ctx, filters, o.limit)
}

// scoreCandidates fans the per-candidate affinity computation out over a
// bounded worker pool. Scoring is order-independent; the caller re-sorts.
// A candidate whose CV cannot be read is logged and skipped, never aborting
// the batch.
func (o *Orchestrator) scoreCandidates(ctx context.Context, students []models.Student, required []models.RequiredSkill, profamilyIDs []int64) []Candidate {
	jobs := make(chan models.Student)
	var mu sync.Mutex
	var wg sync.WaitGroup
	ranked := make([]Candidate, 0, len(students))

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for student := range jobs {
				skills, err := o.store.StudentSkills(ctx, student.ID)
				if err != nil {
					o.logger.Warn("skipping candidate, failed to load CV skills", map[string]interface{}{
						"studentId": student.ID,
						"error":     err,
					})
					continue
				}

				result := affinity.Calculate(required, affinity.NewCandidateProfile(skills), affinity.Context{
					ProfamilyID:        student.ProfamilyID,
					OfferProfamilyIDs:  profamilyIDs,
					VerificationStatus: student.VerificationStatus,
				})

				mu.Lock()
				ranked = append(ranked, Candidate{Student: student, Affinity: result})
				mu.Unlock()
			}
		}()
	}

	for _, student := range students {
		jobs <- student
	}
	close(jobs)
	wg.Wait()

	// restore the deterministic pre-sort order the workers scrambled
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Student.ID < ranked[j].Student.ID
	})
	return ranked
}

// normalizeSkills lower-cases, trims, bounds levels, and drops empty names
// from an ad hoc requirement list.
func normalizeSkills(skills []models.RequiredSkill) []models.RequiredSkill {
	out := make([]models.RequiredSkill, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		name := affinity.NormalizeSkillName(s.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, models.RequiredSkill{Name: name, Level: affinity.ClampProficiency(s.Level)})
	}
	return out
}
