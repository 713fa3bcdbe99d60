package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/edurating/internal/adapters/repository"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFileSource_Load(t *testing.T) {
	Convey("Given the sample rules file", t, func() {
		src := repository.NewFileSource(filepath.Join("testdata", "rules.yaml"))
		snap, err := src.Load(context.Background())
		So(err, ShouldBeNil)

		Convey("The source is named after the file", func() {
			So(src.Name(), ShouldEqual, "file:rules.yaml")
		})

		Convey("Inactive growth rules are dropped and bounds keep their precision", func() {
			So(snap.GrowthRules, ShouldHaveLength, 2)
			So(snap.GrowthRules[0].ThresholdMax.Decimal.String(), ShouldEqual, "24.99")
			So(snap.GrowthRules[1].Unbounded(), ShouldBeTrue)
		})

		Convey("Olympiad levels are normalised and missing bonuses are zero", func() {
			So(snap.OlympiadRules, ShouldHaveLength, 3)
			So(snap.OlympiadRules[2].Level, ShouldEqual, olympiad.LevelCountry)
			So(snap.OlympiadRules[2].StudentBonus.IsZero(), ShouldBeTrue)

			score, err := olympiad.CalculateScore(olympiad.LevelRegion, 1, 3, snap.OlympiadRules)
			So(err, ShouldBeNil)
			So(score.Equal(decimal.NewFromInt(25)), ShouldBeTrue)
		})

		Convey("Only active workflows are kept", func() {
			So(snap.WorkflowTypes(), ShouldResemble, []string{"survey_response"})

			wf, _ := snap.Workflow("survey_response")
			So(wf.Chain, ShouldHaveLength, 3)
			So(wf.Chain[0].IsRequired(), ShouldBeTrue)
			So(wf.Chain[2].IsRequired(), ShouldBeFalse)
			So(*wf.Chain[2].Description, ShouldEqual, "Optional regional sign-off")
			So(wf.Config.AutoApproveAfter, ShouldEqual, "7_days")
			So(approval.Classify(wf.Chain, 1), ShouldEqual, approval.StatePartiallyApproved)
		})

		Convey("Rating configs fill unset groups from defaults", func() {
			cfg := snap.RatingConfigs["school-7"]
			So(cfg.Validate(), ShouldBeNil)
			So(cfg.Rating.ManualWeight.String(), ShouldEqual, "0.2")
			So(cfg.Components.IsValid(), ShouldBeTrue)
			So(cfg.Years.Years(), ShouldResemble, []string{"2023-2024", "2024-2025"})
		})
	})
}

func TestFileSource_Errors(t *testing.T) {
	Convey("Given broken rules files", t, func() {
		dir := t.TempDir()
		write := func(body string) string {
			p := filepath.Join(dir, "rules.yaml")
			So(os.WriteFile(p, []byte(body), 0o600), ShouldBeNil)
			return p
		}

		Convey("A missing file fails to load", func() {
			_, err := repository.NewFileSource(filepath.Join(dir, "absent.yaml")).Load(context.Background())
			So(err, ShouldNotBeNil)
		})

		Convey("A non-numeric bonus is a decode error", func() {
			p := write("growth_rules:\n  - threshold_min: 10\n    bonus_score: lots\n")
			_, err := repository.NewFileSource(p).Load(context.Background())
			So(errors.Is(err, repository.ErrDecode), ShouldBeTrue)
		})

		Convey("A partial workflow config keeps the other defaults", func() {
			p := write("workflows:\n  - type: leave_request\n    chain:\n      - level: 1\n        role: schooladmin\n    config:\n      require_all_levels: true\n")
			snap, err := repository.NewFileSource(p).Load(context.Background())
			So(err, ShouldBeNil)

			wf, ok := snap.Workflow("leave_request")
			So(ok, ShouldBeTrue)
			So(wf.Config.RequireAllLevels, ShouldBeTrue)
			So(wf.Config.AllowSkipLevels, ShouldBeTrue)
			So(wf.Config.AutoApproveAfter, ShouldBeEmpty)
		})

		Convey("A workflow without config gets the defaults", func() {
			p := write("workflows:\n  - type: leave_request\n    chain:\n      - level: 1\n        role: schooladmin\n")
			snap, err := repository.NewFileSource(p).Load(context.Background())
			So(err, ShouldBeNil)

			wf, _ := snap.Workflow("leave_request")
			So(wf.Config, ShouldResemble, approval.DefaultWorkflowConfig())
		})

		Convey("An unknown olympiad level is rejected", func() {
			p := write("olympiad_rules:\n  - level: galactic\n    placement: 1\n    base_score: 10\n")
			_, err := repository.NewFileSource(p).Load(context.Background())
			So(errors.Is(err, olympiad.ErrUnknownLevel), ShouldBeTrue)
		})
	})
}
