package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/growth"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
)

// Numbers are decoded as strings so decimals keep their written precision.
type fileGrowthRule struct {
	ThresholdMin string `koanf:"threshold_min"`
	ThresholdMax string `koanf:"threshold_max"`
	BonusScore   string `koanf:"bonus_score"`
	Active       *bool  `koanf:"active"`
}

type fileOlympiadRule struct {
	Level        string `koanf:"level"`
	Placement    int    `koanf:"placement"`
	BaseScore    string `koanf:"base_score"`
	StudentBonus string `koanf:"student_bonus"`
	Active       *bool  `koanf:"active"`
}

type fileWorkflow struct {
	Type   string              `koanf:"type"`
	Name   string              `koanf:"name"`
	Status string              `koanf:"status"`
	Chain  []approval.Step     `koanf:"chain"`
	Config *fileWorkflowConfig `koanf:"config"`
}

// fileWorkflowConfig marks which options the file sets; the rest keep their
// defaults.
type fileWorkflowConfig struct {
	RequireAllLevels *bool   `koanf:"require_all_levels"`
	AllowSkipLevels  *bool   `koanf:"allow_skip_levels"`
	AutoApproveAfter *string `koanf:"auto_approve_after"`
}

func (c *fileWorkflowConfig) merge() approval.WorkflowConfig {
	cfg := approval.DefaultWorkflowConfig()
	if c == nil {
		return cfg
	}
	if c.RequireAllLevels != nil {
		cfg.RequireAllLevels = *c.RequireAllLevels
	}
	if c.AllowSkipLevels != nil {
		cfg.AllowSkipLevels = *c.AllowSkipLevels
	}
	if c.AutoApproveAfter != nil {
		cfg.AutoApproveAfter = *c.AutoApproveAfter
	}
	return cfg
}

type fileRatingConfig struct {
	InstitutionID string            `koanf:"institution_id"`
	TaskWeight    string            `koanf:"task_weight"`
	SurveyWeight  string            `koanf:"survey_weight"`
	ManualWeight  string            `koanf:"manual_weight"`
	Components    map[string]string `koanf:"components"`
	YearWeights   map[string]string `koanf:"year_weights"`
}

type rulesFile struct {
	GrowthRules   []fileGrowthRule   `koanf:"growth_rules"`
	OlympiadRules []fileOlympiadRule `koanf:"olympiad_rules"`
	Workflows     []fileWorkflow     `koanf:"workflows"`
	RatingConfigs []fileRatingConfig `koanf:"rating_configs"`
}

// FileSource loads snapshots from a YAML rules file.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path on every Load.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "file:" + filepath.Base(s.path)
}

// Load implements Source. Inactive rows are dropped.
func (s *FileSource) Load(_ context.Context) (*Snapshot, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var raw rulesFile
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return raw.snapshot()
}

func (f rulesFile) snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Workflows:     map[string]approval.Workflow{},
		RatingConfigs: map[string]rating.Config{},
	}

	for i, r := range f.GrowthRules {
		if !active(r.Active) {
			continue
		}
		rule := growth.Rule{Active: true}
		var err error
		if rule.ThresholdMin, err = parseDecimal(r.ThresholdMin); err != nil {
			return nil, fmt.Errorf("growth rule %d threshold_min: %w", i, err)
		}
		if rule.BonusScore, err = parseDecimal(r.BonusScore); err != nil {
			return nil, fmt.Errorf("growth rule %d bonus_score: %w", i, err)
		}
		if r.ThresholdMax != "" {
			upper, err := parseDecimal(r.ThresholdMax)
			if err != nil {
				return nil, fmt.Errorf("growth rule %d threshold_max: %w", i, err)
			}
			rule.ThresholdMax = decimal.NewNullDecimal(upper)
		}
		snap.GrowthRules = append(snap.GrowthRules, rule)
	}

	for i, r := range f.OlympiadRules {
		if !active(r.Active) {
			continue
		}
		lvl, err := olympiad.ParseLevel(r.Level)
		if err != nil {
			return nil, fmt.Errorf("olympiad rule %d: %w", i, err)
		}
		base, err := parseDecimal(r.BaseScore)
		if err != nil {
			return nil, fmt.Errorf("olympiad rule %d base_score: %w", i, err)
		}
		bonus := decimal.Zero
		if r.StudentBonus != "" {
			if bonus, err = parseDecimal(r.StudentBonus); err != nil {
				return nil, fmt.Errorf("olympiad rule %d student_bonus: %w", i, err)
			}
		}
		snap.OlympiadRules = append(snap.OlympiadRules, olympiad.Rule{
			Level:        lvl,
			Placement:    r.Placement,
			BaseScore:    base,
			StudentBonus: bonus,
			Active:       true,
		})
	}

	for _, w := range f.Workflows {
		status := w.Status
		if status == "" {
			status = approval.WorkflowActive
		}
		if status != approval.WorkflowActive {
			continue
		}
		snap.Workflows[w.Type] = approval.Workflow{
			Type:   w.Type,
			Name:   w.Name,
			Status: status,
			Chain:  approval.Chain(w.Chain),
			Config: w.Config.merge(),
		}
	}

	for _, rc := range f.RatingConfigs {
		cfg, err := rc.config()
		if err != nil {
			return nil, fmt.Errorf("rating config %s: %w", rc.InstitutionID, err)
		}
		snap.RatingConfigs[rc.InstitutionID] = cfg
	}
	return snap, nil
}

// config fills unset groups from the defaults.
func (rc fileRatingConfig) config() (rating.Config, error) {
	cfg := rating.DefaultConfig()
	cfg.InstitutionID = rc.InstitutionID

	if rc.TaskWeight != "" || rc.SurveyWeight != "" || rc.ManualWeight != "" {
		var rw weights.RatingWeights
		var err error
		if rw.TaskWeight, err = parseOptional(rc.TaskWeight); err != nil {
			return cfg, fmt.Errorf("task_weight: %w", err)
		}
		if rw.SurveyWeight, err = parseOptional(rc.SurveyWeight); err != nil {
			return cfg, fmt.Errorf("survey_weight: %w", err)
		}
		if rw.ManualWeight, err = parseOptional(rc.ManualWeight); err != nil {
			return cfg, fmt.Errorf("manual_weight: %w", err)
		}
		cfg.Rating = rw
	}

	if len(rc.Components) > 0 {
		cw := weights.ComponentWeights{}
		for name, v := range rc.Components {
			w, err := parseDecimal(v)
			if err != nil {
				return cfg, fmt.Errorf("component %s: %w", name, err)
			}
			cw[weights.Component(name)] = w
		}
		cfg.Components = cw
	}

	if len(rc.YearWeights) > 0 {
		yw := weights.YearWeights{}
		for year, v := range rc.YearWeights {
			w, err := parseDecimal(v)
			if err != nil {
				return cfg, fmt.Errorf("year %s: %w", year, err)
			}
			yw[year] = w
		}
		cfg.Years = yw
	}
	return cfg, nil
}

func active(b *bool) bool {
	return b == nil || *b
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrDecode, s)
	}
	return d, nil
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(s)
}
