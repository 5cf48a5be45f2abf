package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Catalogs bundles the three static tables the engine consumes.
type Catalogs struct {
	Badges *BadgeCatalog
	Levels *LevelCatalog
	Plans  *PlanCatalog
}

// Defaults returns the built-in catalogs. Panics only on a programming
// error in the compiled-in tables.
func Defaults() *Catalogs {
	badges, err := NewBadgeCatalog(DefaultBadges())
	if err != nil {
		panic(fmt.Sprintf("default badge catalog: %v", err))
	}
	levels, err := NewLevelCatalog(DefaultLevels())
	if err != nil {
		panic(fmt.Sprintf("default level catalog: %v", err))
	}
	plans, err := NewPlanCatalog(DefaultPlans())
	if err != nil {
		panic(fmt.Sprintf("default plan catalog: %v", err))
	}
	return &Catalogs{Badges: badges, Levels: levels, Plans: plans}
}

// Load returns the defaults with any non-empty path replaced by the
// JSON file at that path. Validation is the same as for the built-ins.
func Load(badgesPath, levelsPath, plansPath string) (*Catalogs, error) {
	c := Defaults()
	if badgesPath != "" {
		var badges []Badge
		if err := readJSON(badgesPath, &badges); err != nil {
			return nil, fmt.Errorf("load badge catalog: %w", err)
		}
		bc, err := NewBadgeCatalog(badges)
		if err != nil {
			return nil, fmt.Errorf("badge catalog %s: %w", badgesPath, err)
		}
		c.Badges = bc
	}
	if levelsPath != "" {
		var levels []LevelInfo
		if err := readJSON(levelsPath, &levels); err != nil {
			return nil, fmt.Errorf("load level catalog: %w", err)
		}
		lc, err := NewLevelCatalog(levels)
		if err != nil {
			return nil, fmt.Errorf("level catalog %s: %w", levelsPath, err)
		}
		c.Levels = lc
	}
	if plansPath != "" {
		var plans []Plan
		if err := readJSON(plansPath, &plans); err != nil {
			return nil, fmt.Errorf("load plan catalog: %w", err)
		}
		pc, err := NewPlanCatalog(plans)
		if err != nil {
			return nil, fmt.Errorf("plan catalog %s: %w", plansPath, err)
		}
		c.Plans = pc
	}
	return c, nil
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
