package db

var schemaSQLite = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS growth_bonus_configs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  threshold_min TEXT NOT NULL,
  threshold_max TEXT,           -- NULL means unbounded
  bonus_score TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS olympiad_level_configs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  level TEXT NOT NULL,
  placement INTEGER NOT NULL,
  base_score TEXT NOT NULL,
  student_bonus TEXT NOT NULL DEFAULT '0',
  is_active INTEGER NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS approval_workflows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  workflow_type TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  approval_chain TEXT NOT NULL, -- JSON array of steps
  workflow_config TEXT          -- JSON object
)`,
	`CREATE TABLE IF NOT EXISTS rating_configs (
  institution_id TEXT PRIMARY KEY,
  task_weight TEXT NOT NULL,
  survey_weight TEXT NOT NULL,
  manual_weight TEXT NOT NULL,
  academic_weight TEXT NOT NULL DEFAULT '0.25',
  observation_weight TEXT NOT NULL DEFAULT '0.20',
  assessment_weight TEXT NOT NULL DEFAULT '0.20',
  certificate_weight TEXT NOT NULL DEFAULT '0.15',
  olympiad_weight TEXT NOT NULL DEFAULT '0.10',
  award_weight TEXT NOT NULL DEFAULT '0.10',
  year_weights TEXT             -- JSON object, NULL uses defaults
)`,
	`CREATE INDEX IF NOT EXISTS idx_olympiad_level_placement ON olympiad_level_configs (level, placement)`,
}

var schemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS growth_bonus_configs (
  id BIGSERIAL PRIMARY KEY,
  threshold_min NUMERIC(10,2) NOT NULL,
  threshold_max NUMERIC(10,2),
  bonus_score NUMERIC(6,2) NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS olympiad_level_configs (
  id BIGSERIAL PRIMARY KEY,
  level TEXT NOT NULL,
  placement INTEGER NOT NULL,
  base_score NUMERIC(8,2) NOT NULL,
  student_bonus NUMERIC(8,2) NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS approval_workflows (
  id BIGSERIAL PRIMARY KEY,
  workflow_type TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  approval_chain JSONB NOT NULL,
  workflow_config JSONB
)`,
	`CREATE TABLE IF NOT EXISTS rating_configs (
  institution_id TEXT PRIMARY KEY,
  task_weight NUMERIC(4,2) NOT NULL,
  survey_weight NUMERIC(4,2) NOT NULL,
  manual_weight NUMERIC(4,2) NOT NULL,
  academic_weight NUMERIC(4,2) NOT NULL DEFAULT 0.25,
  observation_weight NUMERIC(4,2) NOT NULL DEFAULT 0.20,
  assessment_weight NUMERIC(4,2) NOT NULL DEFAULT 0.20,
  certificate_weight NUMERIC(4,2) NOT NULL DEFAULT 0.15,
  olympiad_weight NUMERIC(4,2) NOT NULL DEFAULT 0.10,
  award_weight NUMERIC(4,2) NOT NULL DEFAULT 0.10,
  year_weights JSONB
)`,
	`CREATE INDEX IF NOT EXISTS idx_olympiad_level_placement ON olympiad_level_configs (level, placement)`,
}

type growthRow struct {
	min   string
	max   *string
	bonus string
}

func strp(s string) *string { return &s }

var defaultGrowthRows = []growthRow{
	{min: "15", max: strp("24.99"), bonus: "2"},
	{min: "25", max: nil, bonus: "5"},
}

const (
	defaultWorkflowType = "survey_response"
	defaultWorkflowName = "Survey Response Approval"

	defaultWorkflowChain = `[
  {"level": 1, "role": "schooladmin", "required": true, "title": "School Admin Review"},
  {"level": 2, "role": "sektoradmin", "required": true, "title": "Sector Admin Approval"},
  {"level": 3, "role": "regionadmin", "required": false, "title": "Regional Review"}
]`

	defaultWorkflowConfig = `{"auto_approve_after": "7_days", "require_all_levels": false, "allow_skip_levels": true}`
)
