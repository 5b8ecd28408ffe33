// internal/affinity/levels.go
package affinity

import "strings"

// Level is the ordinal affinity category attached to every result.
// Ordering matters: search ranks by Level before Score.
type Level int

const (
	LevelNoData Level = iota // "sin datos"
	LevelLow                 // "bajo"
	LevelMedium              // "medio"
	LevelHigh                // "alto"
	LevelVeryHigh            // "muy alto"
)

var levelNames = map[Level]string{
	LevelNoData:   "sin datos",
	LevelLow:      "bajo",
	LevelMedium:   "medio",
	LevelHigh:     "alto",
	LevelVeryHigh: "muy alto",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "sin datos"
}

// proficiencyScale is the single ordinal scale shared by the CV-skill path
// and the requirement path. Skill proficiency is always one of these three
// steps; anything else maps to 0 (unknown).
var proficiencyScale = map[string]int{
	"bajo":  1,
	"medio": 2,
	"alto":  3,
}

// ProficiencyValue maps a proficiency label onto the 1-3 ordinal scale.
// Returns 0 for unknown labels.
func ProficiencyValue(label string) int {
	return proficiencyScale[NormalizeSkillName(label)]
}

// NormalizeSkillName lower-cases and trims a skill name so that matching is
// case-insensitive across offers and CVs.
func NormalizeSkillName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ClampProficiency bounds a numeric proficiency onto the 1-3 scale.
func ClampProficiency(level int) int {
	if level < 1 {
		return 1
	}
	if level > 3 {
		return 3
	}
	return level
}
