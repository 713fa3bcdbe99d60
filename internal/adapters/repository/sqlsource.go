package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/growth"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

type growthRow struct {
	ThresholdMin decimal.Decimal     `db:"threshold_min"`
	ThresholdMax decimal.NullDecimal `db:"threshold_max"`
	BonusScore   decimal.Decimal     `db:"bonus_score"`
}

type olympiadRow struct {
	Level        string          `db:"level"`
	Placement    int             `db:"placement"`
	BaseScore    decimal.Decimal `db:"base_score"`
	StudentBonus decimal.Decimal `db:"student_bonus"`
}

type workflowRow struct {
	Type   string         `db:"workflow_type"`
	Name   string         `db:"name"`
	Status string         `db:"status"`
	Chain  string         `db:"approval_chain"`
	Config sql.NullString `db:"workflow_config"`
}

type ratingRow struct {
	InstitutionID string          `db:"institution_id"`
	Task          decimal.Decimal `db:"task_weight"`
	Survey        decimal.Decimal `db:"survey_weight"`
	Manual        decimal.Decimal `db:"manual_weight"`
	Academic      decimal.Decimal `db:"academic_weight"`
	Observation   decimal.Decimal `db:"observation_weight"`
	Assessment    decimal.Decimal `db:"assessment_weight"`
	Certificate   decimal.Decimal `db:"certificate_weight"`
	Olympiad      decimal.Decimal `db:"olympiad_weight"`
	Award         decimal.Decimal `db:"award_weight"`
	YearWeights   sql.NullString  `db:"year_weights"`
}

// SQLSource loads snapshots from the configuration tables.
type SQLSource struct {
	db *sqlx.DB
}

// NewSQLSource returns a source reading from conn.
func NewSQLSource(conn *sqlx.DB) *SQLSource {
	return &SQLSource{db: conn}
}

// Name implements Source.
func (s *SQLSource) Name() string {
	return s.db.DriverName()
}

// Load reads every active row inside one transaction.
func (s *SQLSource) Load(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	snap := &Snapshot{
		Workflows:     map[string]approval.Workflow{},
		RatingConfigs: map[string]rating.Config{},
	}

	var growthRows []growthRow
	if err := tx.SelectContext(ctx, &growthRows,
		`SELECT threshold_min, threshold_max, bonus_score FROM growth_bonus_configs WHERE is_active ORDER BY id`); err != nil {
		return nil, fmt.Errorf("growth rules: %w", err)
	}
	for _, r := range growthRows {
		snap.GrowthRules = append(snap.GrowthRules, growth.Rule{
			ThresholdMin: r.ThresholdMin,
			ThresholdMax: r.ThresholdMax,
			BonusScore:   r.BonusScore,
			Active:       true,
		})
	}

	var olympiadRows []olympiadRow
	if err := tx.SelectContext(ctx, &olympiadRows,
		`SELECT level, placement, base_score, student_bonus FROM olympiad_level_configs WHERE is_active ORDER BY id`); err != nil {
		return nil, fmt.Errorf("olympiad rules: %w", err)
	}
	for _, r := range olympiadRows {
		lvl, err := olympiad.ParseLevel(r.Level)
		if err != nil {
			return nil, fmt.Errorf("olympiad rules: %w", err)
		}
		snap.OlympiadRules = append(snap.OlympiadRules, olympiad.Rule{
			Level:        lvl,
			Placement:    r.Placement,
			BaseScore:    r.BaseScore,
			StudentBonus: r.StudentBonus,
			Active:       true,
		})
	}

	var wfRows []workflowRow
	if err := tx.SelectContext(ctx, &wfRows,
		tx.Rebind(`SELECT workflow_type, name, status, approval_chain, workflow_config FROM approval_workflows WHERE status = ? ORDER BY id`),
		approval.WorkflowActive); err != nil {
		return nil, fmt.Errorf("approval workflows: %w", err)
	}
	for _, r := range wfRows {
		chain, err := decodeChain(r.Chain)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", r.Type, err)
		}
		cfg, err := decodeWorkflowConfig(r.Config.String)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", r.Type, err)
		}
		snap.Workflows[r.Type] = approval.Workflow{
			Type:   r.Type,
			Name:   r.Name,
			Status: r.Status,
			Chain:  chain,
			Config: cfg,
		}
	}

	var ratingRows []ratingRow
	if err := tx.SelectContext(ctx, &ratingRows, `SELECT institution_id, task_weight, survey_weight, manual_weight,
  academic_weight, observation_weight, assessment_weight, certificate_weight, olympiad_weight, award_weight,
  year_weights FROM rating_configs ORDER BY institution_id`); err != nil {
		return nil, fmt.Errorf("rating configs: %w", err)
	}
	for _, r := range ratingRows {
		years, err := decodeYearWeights(r.YearWeights.String)
		if err != nil {
			return nil, fmt.Errorf("rating config %s: %w", r.InstitutionID, err)
		}
		snap.RatingConfigs[r.InstitutionID] = rating.Config{
			InstitutionID: r.InstitutionID,
			Rating: weights.RatingWeights{
				TaskWeight:   r.Task,
				SurveyWeight: r.Survey,
				ManualWeight: r.Manual,
			},
			Components: weights.ComponentWeights{
				weights.Academic:    r.Academic,
				weights.Observation: r.Observation,
				weights.Assessment:  r.Assessment,
				weights.Certificate: r.Certificate,
				weights.Olympiad:    r.Olympiad,
				weights.Award:       r.Award,
			},
			Years: years,
		}
	}

	return snap, nil
}

// decodeChain parses an approval_chain column.
func decodeChain(raw string) (approval.Chain, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: approval_chain is not valid JSON", ErrDecode)
	}
	res := gjson.Parse(raw)
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: approval_chain must be an array", ErrDecode)
	}

	var chain approval.Chain
	var bad error
	res.ForEach(func(_, v gjson.Result) bool {
		level := v.Get("level")
		if level.Type != gjson.Number {
			bad = fmt.Errorf("%w: step %d has no numeric level", ErrDecode, len(chain))
			return false
		}
		step := approval.Step{
			Level: int(level.Int()),
			Role:  v.Get("role").String(),
			Title: v.Get("title").String(),
		}
		if r := v.Get("required"); r.Exists() && r.Type != gjson.Null {
			req := r.Bool()
			step.Required = &req
		}
		if d := v.Get("description"); d.Exists() && d.Type != gjson.Null {
			desc := d.String()
			step.Description = &desc
		}
		chain = append(chain, step)
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return chain, nil
}

// decodeWorkflowConfig parses a workflow_config column; empty yields defaults.
func decodeWorkflowConfig(raw string) (approval.WorkflowConfig, error) {
	cfg := approval.DefaultWorkflowConfig()
	if raw == "" {
		return cfg, nil
	}
	if !gjson.Valid(raw) {
		return cfg, fmt.Errorf("%w: workflow_config is not valid JSON", ErrDecode)
	}
	res := gjson.Parse(raw)
	if v := res.Get("require_all_levels"); v.Exists() {
		cfg.RequireAllLevels = v.Bool()
	}
	if v := res.Get("allow_skip_levels"); v.Exists() {
		cfg.AllowSkipLevels = v.Bool()
	}
	if v := res.Get("auto_approve_after"); v.Exists() {
		cfg.AutoApproveAfter = v.String()
	}
	return cfg, nil
}

// decodeYearWeights parses a year_weights column; empty yields defaults.
func decodeYearWeights(raw string) (weights.YearWeights, error) {
	if raw == "" {
		return weights.DefaultYearWeights(), nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: year_weights is not valid JSON", ErrDecode)
	}
	res := gjson.Parse(raw)
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: year_weights must be an object", ErrDecode)
	}

	out := weights.YearWeights{}
	var bad error
	res.ForEach(func(k, v gjson.Result) bool {
		w, err := decimal.NewFromString(v.String())
		if err != nil {
			bad = fmt.Errorf("%w: year %s: %w", ErrDecode, k.String(), err)
			return false
		}
		out[k.String()] = w
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}
