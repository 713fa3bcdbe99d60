package service_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/edurating/internal/adapters/repository"
	service "github.com/okian/edurating/internal/app"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/growth"
	"github.com/okian/edurating/internal/domain/model"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/internal/domain/weights"
	"github.com/okian/edurating/pkg/logger"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func boolPtr(b bool) *bool { return &b }

// stubSource serves a fixed snapshot, or fails once fail is set.
type stubSource struct {
	loads atomic.Int32
	fail  atomic.Bool
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(context.Context) (*repository.Snapshot, error) {
	s.loads.Add(1)
	if s.fail.Load() {
		return nil, errors.New("source unavailable")
	}
	return &repository.Snapshot{
		GrowthRules: growth.Rules{
			{ThresholdMin: d("15"), ThresholdMax: decimal.NewNullDecimal(d("24.99")), BonusScore: d("2"), Active: true},
			{ThresholdMin: d("25"), BonusScore: d("5"), Active: true},
		},
		OlympiadRules: olympiad.Rules{
			{Level: olympiad.LevelRayon, Placement: 1, BaseScore: d("10"), StudentBonus: d("1"), Active: true},
			{Level: olympiad.LevelRegion, Placement: 2, BaseScore: d("15"), StudentBonus: d("0"), Active: true},
		},
		Workflows: map[string]approval.Workflow{
			"survey_response": {
				Type:   "survey_response",
				Name:   "Survey Response Approval",
				Status: approval.WorkflowActive,
				Chain: approval.Chain{
					{Level: 1, Role: "schooladmin"},
					{Level: 2, Role: "sektoradmin"},
					{Level: 3, Role: "regionadmin", Required: boolPtr(false)},
				},
				Config: approval.DefaultWorkflowConfig(),
			},
		},
		RatingConfigs: map[string]rating.Config{},
	}, nil
}

func flat(year, score string) rating.YearScores {
	s := d(score)
	return rating.YearScores{Year: year, Academic: s, Observation: s, Assessment: s, Certificate: s, Olympiad: s, Award: s}
}

func startService(opts ...service.Option) (*service.Service, *stubSource) {
	src := &stubSource{}
	opts = append([]service.Option{
		service.WithSource(src),
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithDedupeSize(64),
	}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc, src
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without a source", t, func() {
		svc := service.New()

		Convey("Start fails", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNoSource), ShouldBeTrue)
		})

		Convey("Engine calls report not ready", func() {
			_, _, err := svc.ResolveGrowth(context.Background(), d("20"))
			So(errors.Is(err, service.ErrNotReady), ShouldBeTrue)
			_, err = svc.SubmitRating(context.Background(), model.RatingJob{TeacherID: "t"})
			So(errors.Is(err, service.ErrNotReady), ShouldBeTrue)
		})
	})

	Convey("Given a source that cannot load", t, func() {
		src := &stubSource{}
		src.fail.Store(true)
		svc := service.New(service.WithSource(src))

		Convey("Start fails on the initial snapshot", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, repository.ErrSnapshotLoad), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given an invalid refresh schedule", t, func() {
		svc := service.New(service.WithSource(&stubSource{}), service.WithRefreshSchedule("every tuesday"))

		Convey("Start fails", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrInvalidSchedule), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		svc, _ := startService()
		Reset(svc.Stop)

		Convey("Stats report the snapshot", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["storedRatings"], ShouldEqual, 0)
			So(stats["snapshot"], ShouldNotBeNil)
		})

		Convey("Stop is idempotent", func() {
			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Engines(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, _ := startService()
		ctx := context.Background()
		Reset(svc.Stop)

		Convey("Growth bonuses resolve against the snapshot", func() {
			bonus, ok, err := svc.ResolveGrowth(ctx, d("20"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(bonus.Equal(d("2")), ShouldBeTrue)

			bonus, ok, err = svc.ResolveGrowth(ctx, d("10"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(bonus.IsZero(), ShouldBeTrue)
		})

		Convey("Olympiad scores include the student bonus", func() {
			score, err := svc.OlympiadScore(ctx, olympiad.LevelRayon, 1, 4)
			So(err, ShouldBeNil)
			So(score.Equal(d("13")), ShouldBeTrue)

			_, err = svc.OlympiadScore(ctx, olympiad.LevelRayon, 1, -1)
			So(errors.Is(err, olympiad.ErrInvalidArgument), ShouldBeTrue)

			total, err := svc.OlympiadTotal(ctx, []olympiad.Achievement{
				{Level: olympiad.LevelRayon, Placement: 1, StudentCount: 4},
				{Level: olympiad.LevelRegion, Placement: 2},
			})
			So(err, ShouldBeNil)
			So(total.Equal(d("28")), ShouldBeTrue)

			groups, err := svc.OlympiadRules(ctx)
			So(err, ShouldBeNil)
			So(groups[olympiad.LevelRegion], ShouldHaveLength, 1)
		})

		Convey("Approval steps follow the workflow", func() {
			step, ok, err := svc.NextApprovalStep(ctx, "survey_response", 1, false)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(step.Role, ShouldEqual, "sektoradmin")

			_, ok, err = svc.NextApprovalStep(ctx, "survey_response", 2, true)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			_, _, err = svc.NextApprovalStep(ctx, "task_report", 0, false)
			So(errors.Is(err, service.ErrUnknownWorkflow), ShouldBeTrue)
		})

		Convey("Approval status classifies the level", func() {
			st, err := svc.ApprovalStatus(ctx, "survey_response", 2)
			So(err, ShouldBeNil)
			So(st.FullyApproved, ShouldBeTrue)
			So(st.State, ShouldEqual, approval.StateFullyApproved)
			So(st.MaxRequiredLevel, ShouldEqual, 2)
		})

		Convey("Decisions move the request", func() {
			dec, err := svc.Decide(ctx, "survey_response", 1, approval.ActionApprove)
			So(err, ShouldBeNil)
			So(dec.Status, ShouldEqual, approval.StatusApproved)
			So(dec.Level, ShouldEqual, 2)

			_, err = svc.Decide(ctx, "survey_response", 2, approval.ActionApprove)
			So(errors.Is(err, approval.ErrAlreadyCompleted), ShouldBeTrue)
		})

		Convey("Weights are validated with tolerance", func() {
			total, ok := svc.ValidateWeights(ctx, weights.RatingWeights{TaskWeight: d("0.5"), SurveyWeight: d("0.3"), ManualWeight: d("0.2")})
			So(ok, ShouldBeTrue)
			So(total.Equal(d("1")), ShouldBeTrue)

			_, ok = svc.ValidateWeights(ctx, weights.RatingWeights{TaskWeight: d("0.5"), SurveyWeight: d("0.3"), ManualWeight: d("0.25")})
			So(ok, ShouldBeFalse)
		})
	})
}

func TestService_RatingJobs(t *testing.T) {
	Convey("Given a started service", t, func() {
		fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		svc, _ := startService(service.WithClock(func() time.Time { return fixed }))
		ctx := context.Background()
		Reset(svc.Stop)

		job := model.RatingJob{
			JobID:     "job-1",
			TeacherID: "teacher-1",
			Years:     []rating.YearScores{flat("2022-2023", "60"), flat("2023-2024", "70"), flat("2024-2025", "80")},
		}

		Convey("A submitted job is rated and ranked", func() {
			id, err := svc.SubmitRating(ctx, job)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "job-1")

			So(waitFor(func() bool {
				_, _, err := svc.Rating(ctx, "teacher-1")
				return err == nil
			}), ShouldBeTrue)

			stored, entry, err := svc.Rating(ctx, "teacher-1")
			So(err, ShouldBeNil)
			So(stored.Result.Final.Equal(d("77")), ShouldBeTrue)
			So(stored.Result.GrowthBonus.Equal(d("5")), ShouldBeTrue)
			So(stored.SnapshotID, ShouldEqual, svc.Snapshot().Version)
			So(stored.ComputedAt, ShouldEqual, fixed)
			So(entry.Rank, ShouldEqual, 1)

			top, err := svc.TopRatings(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 1)
		})

		Convey("Resubmitting a job ID is a duplicate", func() {
			_, err := svc.SubmitRating(ctx, job)
			So(err, ShouldBeNil)
			_, err = svc.SubmitRating(ctx, job)
			So(errors.Is(err, service.ErrDuplicateJob), ShouldBeTrue)
		})

		Convey("A job scoring the same year twice is rejected up front", func() {
			bad := job
			bad.Years = []rating.YearScores{flat("2024-2025", "60"), flat("2024-2025", "80")}
			_, err := svc.SubmitRating(ctx, bad)
			So(errors.Is(err, rating.ErrDuplicateYear), ShouldBeTrue)

			Convey("And the corrected job can reuse its ID", func() {
				id, err := svc.SubmitRating(ctx, job)
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "job-1")
				So(waitFor(func() bool {
					_, _, err := svc.Rating(ctx, "teacher-1")
					return err == nil
				}), ShouldBeTrue)
			})
		})

		Convey("Jobs without an ID get a generated one", func() {
			job.JobID = ""
			id, err := svc.SubmitRating(ctx, job)
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)
		})

		Convey("Unknown teachers are not found", func() {
			_, _, err := svc.Rating(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_StopDrainsAcceptedJobs(t *testing.T) {
	Convey("Given a service whose start context is already cancelled", t, func() {
		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(
			service.WithSource(&stubSource{}),
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
		)
		So(svc.Start(startCtx), ShouldBeNil)
		cancel()

		ctx := context.Background()
		teachers := []string{"teacher-a", "teacher-b", "teacher-c", "teacher-d", "teacher-e"}
		for _, id := range teachers {
			_, err := svc.SubmitRating(ctx, model.RatingJob{
				JobID:     "job-" + id,
				TeacherID: id,
				Years:     []rating.YearScores{flat("2023-2024", "50"), flat("2024-2025", "60")},
			})
			So(err, ShouldBeNil)
		}

		Convey("When the service stops", func() {
			svc.Stop()

			Convey("Then every accepted job has been rated", func() {
				for _, id := range teachers {
					_, _, err := svc.Rating(ctx, id)
					So(err, ShouldBeNil)
				}
			})
		})
	})
}

func TestService_Reload(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, src := startService()
		ctx := context.Background()
		Reset(svc.Stop)

		first := svc.Snapshot()

		Convey("A manual reload publishes a new version", func() {
			snap, err := svc.Reload(ctx)
			So(err, ShouldBeNil)
			So(snap.Version, ShouldNotEqual, first.Version)
			So(svc.Snapshot(), ShouldEqual, snap)
		})

		Convey("A failed reload keeps serving the previous snapshot", func() {
			src.fail.Store(true)
			_, err := svc.Reload(ctx)
			So(err, ShouldNotBeNil)
			So(svc.Snapshot(), ShouldEqual, first)

			bonus, _, err := svc.ResolveGrowth(ctx, d("30"))
			So(err, ShouldBeNil)
			So(bonus.Equal(d("5")), ShouldBeTrue)
		})
	})

	Convey("Given a frequent refresh schedule", t, func() {
		svc, src := startService(service.WithRefreshSchedule("@every 1s"))
		Reset(svc.Stop)

		Convey("The source is reloaded in the background", func() {
			So(waitFor(func() bool { return src.loads.Load() >= 2 }), ShouldBeTrue)
		})
	})
}
