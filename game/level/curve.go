// Package level maps total experience to levels and back.
//
// The marginal cost of reaching level n (n >= 2) is Base * n^Exponent, so
// late levels cost disproportionately more. The threshold of a level is the
// cumulative sum of marginal costs, floored once at the end.
package level

import (
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Asuura666/game-habits/config"
)

// Curve is safe for concurrent use.
type Curve struct {
	base     float64
	exponent float64
	maxLevel int
	sums     *lru.Cache // level -> float64 cumulative cost
}

// NewCurve builds a curve from config. Invalid values are rejected by
// config.Validate before they reach here.
func NewCurve(cfg config.LevelConfig) *Curve {
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, _ := lru.New(size)
	return &Curve{
		base:     cfg.Base,
		exponent: cfg.Exponent,
		maxLevel: cfg.MaxLevel,
		sums:     cache,
	}
}

// MaxLevel is the highest level LevelForExperience reports.
func (c *Curve) MaxLevel() int { return c.maxLevel }

// ExperienceForLevel returns the total experience needed to reach level.
// Levels below 2 return the level-1 floor of 0.
func (c *Curve) ExperienceForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Floor(c.cumulative(level)))
}

func (c *Curve) cumulative(level int) float64 {
	if level <= 1 {
		return 0
	}
	if v, ok := c.sums.Get(level); ok {
		return v.(float64)
	}
	// Walk down to the nearest memoized level, then accumulate upwards.
	start, sum := level, 0.0
	for start > 1 {
		if v, ok := c.sums.Get(start - 1); ok {
			sum = v.(float64)
			break
		}
		start--
	}
	if start < 2 {
		start = 2
	}
	for n := start; n <= level; n++ {
		sum += c.marginal(n)
		c.sums.Add(n, sum)
	}
	return sum
}

func (c *Curve) marginal(n int) float64 {
	return c.base * math.Pow(float64(n), c.exponent)
}

// LevelForExperience returns the largest level whose threshold is <= xp,
// clamped to MaxLevel.
func (c *Curve) LevelForExperience(xp int64) int {
	if xp <= 0 {
		return 1
	}
	// sort.Search finds the first level in [2, maxLevel] whose threshold
	// exceeds xp; the answer is the level just below it.
	idx := sort.Search(c.maxLevel-1, func(i int) bool {
		return c.ExperienceForLevel(i+2) > xp
	})
	return idx + 1
}

// Progress describes where a total sits inside its level.
type Progress struct {
	Level        int   `json:"level"`
	TotalXP      int64 `json:"total_xp"`
	LevelFloorXP int64 `json:"level_floor_xp"`
	NextLevelXP  int64 `json:"next_level_xp"`
	IntoLevel    int64 `json:"into_level"`
	ToNext       int64 `json:"to_next"`
	MaxedOut     bool  `json:"maxed_out"`
}

func (c *Curve) Progress(xp int64) Progress {
	if xp < 0 {
		xp = 0
	}
	lvl := c.LevelForExperience(xp)
	p := Progress{
		Level:        lvl,
		TotalXP:      xp,
		LevelFloorXP: c.ExperienceForLevel(lvl),
	}
	p.IntoLevel = xp - p.LevelFloorXP
	if lvl >= c.maxLevel {
		p.MaxedOut = true
		return p
	}
	p.NextLevelXP = c.ExperienceForLevel(lvl + 1)
	p.ToNext = p.NextLevelXP - xp
	return p
}
