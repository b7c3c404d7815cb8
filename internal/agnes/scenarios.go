package agnes

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
	"github.com/roofdocs/nexus/pkg/parser"
)

// Scenario categories.
const (
	CategoryInitialContact   = "initial_contact"
	CategoryAdjusterRelations = "adjuster_relations"
	CategoryTemplateUsage    = "template_usage"
	CategoryCodeCitations    = "code_citations"
	CategoryEscalation       = "escalation"
	CategoryDocumentation    = "documentation"
)

// Difficulty levels, in ascending order.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyExpert       = "expert"
	DifficultyChallenge    = "challenge"
)

// Categories lists every scenario category in display order.
var Categories = []string{
	CategoryInitialContact,
	CategoryAdjusterRelations,
	CategoryTemplateUsage,
	CategoryCodeCitations,
	CategoryEscalation,
	CategoryDocumentation,
}

//go:embed assets/scenarios.yml
var scenarioAssets embed.FS

const packVersionKey = "scenario_pack_version"

// scenarioPack is the embedded seed file: a semver version plus per-category
// variant templates that get expanded into the full scenario catalog.
type scenarioPack struct {
	Version    string                  `yaml:"version"`
	Categories []scenarioPackCategory  `yaml:"categories"`
}

type scenarioPackCategory struct {
	Name     string                `yaml:"name"`
	Count    int                   `yaml:"count"`
	Variants []scenarioPackVariant `yaml:"variants"`
}

type scenarioPackVariant struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Persona     string   `yaml:"persona"`
	Situation   string   `yaml:"situation"`
	OpeningLine string   `yaml:"opening_line"`
	Objectives  []string `yaml:"objectives"`
}

func loadScenarioPack() (*scenarioPack, error) {
	pack := &scenarioPack{}
	if err := parser.ParseYAMLFile(scenarioAssets, "scenarios.yml", pack, "assets"); err != nil {
		return nil, fmt.Errorf("failed to load scenario pack: %w", err)
	}
	if _, err := semver.NewVersion(pack.Version); err != nil {
		return nil, fmt.Errorf("scenario pack version %q is not valid semver: %w", pack.Version, err)
	}
	return pack, nil
}

// difficultyFor spreads difficulties across a category: the first scenarios
// are beginner, the middle intermediate, the later ones expert, and the tail
// is reserved for challenge runs.
func difficultyFor(index, total int) string {
	switch {
	case index < total*30/100:
		return DifficultyBeginner
	case index < total*65/100:
		return DifficultyIntermediate
	case index < total*90/100:
		return DifficultyExpert
	default:
		return DifficultyChallenge
	}
}

// expandPack turns the seed templates into the full catalog. Variants are
// cycled so every category reaches its configured count, and titles carry a
// roman-free ordinal suffix past the first use of a variant.
func expandPack(pack *scenarioPack) ([]*db.Scenario, error) {
	var out []*db.Scenario
	for _, cat := range pack.Categories {
		if len(cat.Variants) == 0 {
			return nil, fmt.Errorf("scenario pack category %q has no variants", cat.Name)
		}
		for i := 0; i < cat.Count; i++ {
			variant := cat.Variants[i%len(cat.Variants)]
			difficulty := difficultyFor(i, cat.Count)

			title := variant.Title
			if round := i / len(cat.Variants); round > 0 {
				title = fmt.Sprintf("%s (Part %d)", variant.Title, round+1)
			}

			objectives, err := json.Marshal(variant.Objectives)
			if err != nil {
				return nil, fmt.Errorf("failed to encode objectives for %q: %w", title, err)
			}

			out = append(out, &db.Scenario{
				ID:          fmt.Sprintf("%s_%02d", cat.Name, i+1),
				Title:       title,
				Category:    cat.Name,
				Difficulty:  difficulty,
				Description: variant.Description,
				Persona:     variant.Persona,
				Situation:   variant.Situation,
				OpeningLine: variant.OpeningLine,
				Objectives:  string(objectives),
			})
		}
	}
	return out, nil
}

// SeedScenarios installs or refreshes the scenario catalog. Seeding runs when
// the table is empty or when the embedded pack carries a newer version than
// the one recorded in app_meta.
func SeedScenarios(d *sql.DB) error {
	pack, err := loadScenarioPack()
	if err != nil {
		return err
	}

	packVersion := semver.MustParse(pack.Version)

	installed, err := queries.GetMeta(d, packVersionKey)
	if err != nil {
		return fmt.Errorf("failed to read installed scenario pack version: %w", err)
	}

	count, err := queries.CountScenarios(d)
	if err != nil {
		return err
	}

	if count > 0 && installed != "" {
		current, err := semver.NewVersion(installed)
		if err == nil && !packVersion.GreaterThan(current) {
			logger.Debug("Scenario catalog up to date", "version", installed, "scenarios", count)
			return nil
		}
	}

	scenarios, err := expandPack(pack)
	if err != nil {
		return err
	}

	for _, s := range scenarios {
		if err := queries.UpsertScenario(d, s); err != nil {
			return fmt.Errorf("failed to seed scenario %s: %w", s.ID, err)
		}
	}

	if err := queries.SetMeta(d, packVersionKey, pack.Version); err != nil {
		return err
	}

	logger.Info("Scenario catalog seeded", "version", pack.Version, "scenarios", len(scenarios))
	return nil
}
