// internal/affinity/calculator.go
package affinity

import (
	"fmt"
	"sort"

	"placement-backend/internal/models"
)

// Scoring constants. The level-ratio function is min(candidate/required, 1):
// meeting or exceeding the required level contributes full weight, partial
// levels contribute proportionally. Monotonic and bounded in [0, 1].
//
// The base score is the mean per-required-skill contribution scaled to 100,
// multiplied by the professional-family factor, plus the verification bonus.
// Thresholds map the final score onto the ordinal levels. All constants are
// fixed here so two searches over the same data always rank identically.
const (
	profamilyMatchFactor    = 1.2
	profamilyMismatchFactor = 0.9
	profamilyNeutralFactor  = 1.0

	verifiedBonus = 5.0

	thresholdVeryHigh = 85.0
	thresholdHigh     = 60.0
	thresholdMedium   = 35.0
)

// Context carries the non-skill inputs of an affinity computation.
type Context struct {
	ProfamilyID        *int64
	OfferProfamilyIDs  []int64
	VerificationStatus string
}

// Factors is the score breakdown attached to every result.
type Factors struct {
	SkillScore        float64 `json:"skillScore"`        // mean level-ratio over required skills, x100
	ProfamilyAffinity float64 `json:"profamilyAffinity"` // multiplier applied to the skill score
	VerificationBonus float64 `json:"verificationBonus"` // flat additive adjustment
}

// Result is the transient output of comparing one candidate against one set
// of requirements. Recomputed on every search, never persisted.
type Result struct {
	Score           float64 `json:"score"`
	Level           Level   `json:"-"`
	LevelName       string  `json:"level"`
	MatchCount      int     `json:"matchCount"`
	CoveragePercent float64 `json:"coveragePercent"`
	MatchingSkills  []string `json:"matchingSkills"`
	Explanation     string  `json:"explanation"`
	Factors         Factors `json:"factors"`
}

// CandidateProfile is a student's skill map derived from their CV: normalized
// skill name to proficiency on the 1-3 ordinal scale.
type CandidateProfile map[string]int

// NewCandidateProfile builds a profile from CV skill associations. Unknown
// proficiency labels default to the lowest step rather than dropping the
// skill.
func NewCandidateProfile(skills []models.CVSkill) CandidateProfile {
	profile := make(CandidateProfile, len(skills))
	for _, s := range skills {
		name := NormalizeSkillName(s.Name)
		if name == "" {
			continue
		}
		level := ProficiencyValue(s.Level)
		if level == 0 {
			level = 1
		}
		if level > profile[name] {
			profile[name] = level
		}
	}
	return profile
}

// Calculate computes the affinity between a set of requirements and one
// candidate. Pure and deterministic: no side effects, no randomness, always
// returns a result even for degenerate inputs.
func Calculate(required []models.RequiredSkill, candidate CandidateProfile, ctx Context) Result {
	if len(required) == 0 {
		return Result{
			Score:          0,
			Level:          LevelNoData,
			LevelName:      LevelNoData.String(),
			MatchingSkills: []string{},
			Explanation:    "no required skills provided",
			Factors: Factors{
				ProfamilyAffinity: profamilyNeutralFactor,
			},
		}
	}

	var contribution float64
	matching := make([]string, 0, len(required))
	for _, req := range required {
		name := NormalizeSkillName(req.Name)
		candLevel, ok := candidate[name]
		if !ok || candLevel <= 0 {
			continue
		}
		matching = append(matching, name)
		reqLevel := ClampProficiency(req.Level)
		contribution += levelRatio(candLevel, reqLevel)
	}
	sort.Strings(matching)

	skillScore := contribution / float64(len(required)) * 100
	coverage := float64(len(matching)) / float64(len(required)) * 100

	profamilyFactor := profamilyAffinity(ctx.ProfamilyID, ctx.OfferProfamilyIDs)
	verification := verificationAdjustment(ctx.VerificationStatus)

	score := skillScore*profamilyFactor + verification
	if score < 0 {
		score = 0
	}

	level := levelForScore(score)

	return Result{
		Score:           score,
		Level:           level,
		LevelName:       level.String(),
		MatchCount:      len(matching),
		CoveragePercent: coverage,
		MatchingSkills:  matching,
		Explanation:     explain(len(matching), len(required), coverage, profamilyFactor, verification),
		Factors: Factors{
			SkillScore:        skillScore,
			ProfamilyAffinity: profamilyFactor,
			VerificationBonus: verification,
		},
	}
}

// levelRatio is the per-match contribution: full weight when the candidate
// meets or exceeds the required level, proportional weight below it.
func levelRatio(candidate, required int) float64 {
	if candidate >= required {
		return 1.0
	}
	return float64(candidate) / float64(required)
}

// profamilyAffinity compares the candidate's professional family against the
// offer's required families. No required families, or no declared candidate
// family, is neutral.
func profamilyAffinity(candidateFamily *int64, offerFamilies []int64) float64 {
	if len(offerFamilies) == 0 || candidateFamily == nil {
		return profamilyNeutralFactor
	}
	for _, id := range offerFamilies {
		if id == *candidateFamily {
			return profamilyMatchFactor
		}
	}
	return profamilyMismatchFactor
}

// verificationAdjustment grants verified candidates a small flat bonus.
// Pending, unverified, and rejected candidates get no adjustment.
func verificationAdjustment(status string) float64 {
	if status == models.VerificationVerified {
		return verifiedBonus
	}
	return 0
}

func levelForScore(score float64) Level {
	switch {
	case score >= thresholdVeryHigh:
		return LevelVeryHigh
	case score >= thresholdHigh:
		return LevelHigh
	case score >= thresholdMedium:
		return LevelMedium
	case score > 0:
		return LevelLow
	default:
		return LevelNoData
	}
}

func explain(matches, total int, coverage, profamilyFactor, verification float64) string {
	msg := fmt.Sprintf("%d/%d required skills matched (%.0f%% coverage)", matches, total, coverage)
	switch {
	case profamilyFactor > profamilyNeutralFactor:
		msg += "; professional family matches"
	case profamilyFactor < profamilyNeutralFactor:
		msg += "; professional family differs"
	}
	if verification > 0 {
		msg += "; verified academic record"
	}
	return msg
}
