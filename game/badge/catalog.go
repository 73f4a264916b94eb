package badge

import (
	"time"

	"github.com/sahilm/fuzzy"
)

// DefaultCatalog is the standard badge set seeded on first start.
func DefaultCatalog() []Definition {
	return []Definition{
		NewDefinition("First Step", "Complete your first habit or task.", Condition{Type: CondCompletions, Threshold: 1}, 10),
		NewDefinition("Centurion", "Complete 100 activities.", Condition{Type: CondCompletions, Threshold: 100}, 150),
		NewDefinition("Week Warrior", "Keep a 7 day streak.", Condition{Type: CondStreak, Threshold: 7}, 50),
		NewDefinition("Monthly Master", "Keep a 30 day streak.", Condition{Type: CondStreak, Threshold: 30}, 200),
		NewDefinition("Unbreakable", "Keep a 100 day streak.", Condition{Type: CondStreak, Threshold: 100}, 1000),
		NewDefinition("Apprentice", "Reach level 5.", Condition{Type: CondLevel, Threshold: 5}, 50),
		NewDefinition("Veteran", "Reach level 20.", Condition{Type: CondLevel, Threshold: 20}, 300),
		NewDefinition("Duelist", "Win your first combat.", Condition{Type: CondCombatWins, Threshold: 1}, 25),
		NewDefinition("Gladiator", "Win 25 combats.", Condition{Type: CondCombatWins, Threshold: 25}, 250),
		NewDefinition("Night Owl", "Complete something between midnight and 5am.", Condition{Type: CondSecret, Secret: FlagNightOwl}, 30),
		NewDefinition("Comeback Kid", "Restart a streak after a week away.", Condition{Type: CondSecret, Secret: FlagComeback}, 30),
		NewDefinition("Giant Slayer", "Beat a higher-level opponent.", Condition{Type: CondSecret, Secret: FlagGiantSlayer}, 75),
		NewDefinition("Saved by the Bell", "Let a freeze rescue your streak.", Condition{Type: CondSecret, Secret: FlagFreezeSaved}, 20),
		NewDefinition("New Year Resolve", "Complete something between New Year's Eve and January 7.",
			Condition{Type: CondDateWindow, From: MonthDay{Month: time.December, Day: 31}, To: MonthDay{Month: time.January, Day: 7}}, 40),
	}
}

type definitions []Definition

func (d definitions) String(i int) string { return d[i].Name + " " + d[i].Code }
func (d definitions) Len() int            { return len(d) }

// Search fuzzy-matches q against badge names, best match first. An empty
// query returns defs unchanged.
func Search(defs []Definition, q string) []Definition {
	if q == "" {
		return defs
	}
	matches := fuzzy.FindFrom(q, definitions(defs))
	out := make([]Definition, len(matches))
	for i, m := range matches {
		out[i] = defs[m.Index]
	}
	return out
}
