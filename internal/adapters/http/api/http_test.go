package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/edurating/internal/adapters/http/api"
	"github.com/okian/edurating/internal/adapters/repository"
	service "github.com/okian/edurating/internal/app"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/model"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/internal/domain/types"
	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// fakeDeps answers from canned data and records submitted jobs.
type fakeDeps struct {
	submitErr error
	reloadErr error
	jobs      []model.RatingJob
	stored    map[string]model.StoredRating
	top       []types.Entry
	workflow  approval.Workflow
}

func newFakeDeps() *fakeDeps {
	f := false
	return &fakeDeps{
		stored: map[string]model.StoredRating{
			"t-1": {JobID: "j-1", Result: rating.Result{TeacherID: "t-1", Final: d("71.25")}},
		},
		top: []types.Entry{
			{Rank: 1, TeacherID: "t-1", Final: d("71.25")},
			{Rank: 2, TeacherID: "t-2", Final: d("60")},
		},
		workflow: approval.Workflow{
			Type:   "survey_response",
			Name:   "Survey Response Approval",
			Status: approval.WorkflowActive,
			Chain: approval.Chain{
				{Level: 1, Role: "schooladmin"},
				{Level: 2, Role: "sektoradmin"},
				{Level: 3, Role: "regionadmin", Required: &f},
			},
			Config: approval.DefaultWorkflowConfig(),
		},
	}
}

func (f *fakeDeps) ResolveGrowth(_ context.Context, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	if amount.GreaterThanOrEqual(d("15")) {
		return d("2"), true, nil
	}
	return decimal.Zero, false, nil
}

func (f *fakeDeps) OlympiadScore(_ context.Context, level olympiad.Level, placement, studentCount int) (decimal.Decimal, error) {
	if level == olympiad.LevelRayon && placement == 1 {
		return d("10").Add(decimal.NewFromInt(int64(studentCount - 1))), nil
	}
	return decimal.Zero, nil
}

func (f *fakeDeps) OlympiadTotal(ctx context.Context, achievements []olympiad.Achievement) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range achievements {
		s, err := f.OlympiadScore(ctx, a.Level, a.Placement, a.StudentCount)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(s)
	}
	return total, nil
}

func (f *fakeDeps) OlympiadRules(context.Context) (map[olympiad.Level][]olympiad.Rule, error) {
	return map[olympiad.Level][]olympiad.Rule{
		olympiad.LevelRayon: {{Level: olympiad.LevelRayon, Placement: 1, BaseScore: d("10"), StudentBonus: d("1"), Active: true}},
	}, nil
}

func (f *fakeDeps) Workflow(_ context.Context, workflowType string) (approval.Workflow, error) {
	if workflowType != f.workflow.Type {
		return approval.Workflow{}, fmt.Errorf("%w: %q", service.ErrUnknownWorkflow, workflowType)
	}
	return f.workflow, nil
}

func (f *fakeDeps) NextApprovalStep(ctx context.Context, workflowType string, currentLevel int, requiredOnly bool) (approval.Step, bool, error) {
	wf, err := f.Workflow(ctx, workflowType)
	if err != nil {
		return approval.Step{}, false, err
	}
	if requiredOnly {
		step, ok := approval.NextRequiredStep(wf.Chain, wf.Config, currentLevel)
		return step, ok, nil
	}
	step, ok := approval.NextStep(wf.Chain, currentLevel)
	return step, ok, nil
}

func (f *fakeDeps) ApprovalStatus(ctx context.Context, workflowType string, currentLevel int) (service.ApprovalStatus, error) {
	wf, err := f.Workflow(ctx, workflowType)
	if err != nil {
		return service.ApprovalStatus{}, err
	}
	return service.ApprovalStatus{
		WorkflowType:  workflowType,
		CurrentLevel:  currentLevel,
		FullyApproved: approval.IsFullyApproved(wf.Chain, currentLevel),
		State:         approval.Classify(wf.Chain, currentLevel),
	}, nil
}

func (f *fakeDeps) Decide(ctx context.Context, workflowType string, currentLevel int, action approval.Action) (approval.Decision, error) {
	wf, err := f.Workflow(ctx, workflowType)
	if err != nil {
		return approval.Decision{}, err
	}
	return approval.Decide(wf, currentLevel, action)
}

func (f *fakeDeps) ValidateWeights(_ context.Context, w weights.RatingWeights) (decimal.Decimal, bool) {
	return weights.TotalWeight(w), weights.IsValid(w)
}

func (f *fakeDeps) SubmitRating(_ context.Context, job model.RatingJob) (string, error) { //nolint:gocritic // hugeParam: matches api.Dependencies
	if job.JobID == "" {
		job.JobID = "generated"
	}
	if f.submitErr != nil {
		return job.JobID, f.submitErr
	}
	f.jobs = append(f.jobs, job)
	return job.JobID, nil
}

func (f *fakeDeps) Rating(_ context.Context, teacherID string) (model.StoredRating, types.Entry, error) {
	r, ok := f.stored[teacherID]
	if !ok {
		return model.StoredRating{}, types.Entry{}, repository.ErrNotFound
	}
	return r, f.top[0], nil
}

func (f *fakeDeps) TopRatings(_ context.Context, n int) ([]types.Entry, error) {
	if n > len(f.top) {
		n = len(f.top)
	}
	return f.top[:n], nil
}

func (f *fakeDeps) Reload(context.Context) (*repository.Snapshot, error) {
	if f.reloadErr != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrSnapshotLoad, f.reloadErr)
	}
	return &repository.Snapshot{Version: "v-2", Source: "stub", LoadedAt: time.Unix(1700000000, 0).UTC()}, nil
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "queueLength": 0}
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	out := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server over fake dependencies", t, func() {
		ctx := context.Background()
		deps := newFakeDeps()
		h := api.NewServer(deps, fakeStats{}, api.WithMaxTopLimit(50)).Handler(ctx)

		Convey("Health answers with metrics or JSON", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Accept", "application/json")
			w = httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["status"], ShouldEqual, "ok")
		})

		Convey("Stats are served as JSON", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["started"], ShouldEqual, true)
		})

		Convey("Growth resolve", func() {
			Convey("returns the bonus", func() {
				w := do(h, http.MethodPost, "/v1/growth/resolve", `{"amount": "18.5"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["bonus"], ShouldEqual, "2")
				So(body["qualifies"], ShouldEqual, true)
			})

			Convey("accepts a zero amount", func() {
				w := do(h, http.MethodPost, "/v1/growth/resolve", `{"amount": 0}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["qualifies"], ShouldEqual, false)
			})

			Convey("requires an amount", func() {
				w := do(h, http.MethodPost, "/v1/growth/resolve", `{}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeBody(w)
				So(body["code"], ShouldEqual, "bad_request")
				So(body["message"], ShouldContainSubstring, "amount is required")
			})

			Convey("rejects unknown fields", func() {
				w := do(h, http.MethodPost, "/v1/growth/resolve", `{"amount": 1, "extra": true}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("Olympiad scoring", func() {
			Convey("scores a placement", func() {
				w := do(h, http.MethodPost, "/v1/olympiad/score", `{"level": "Rayon", "placement": 1, "student_count": 3}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["score"], ShouldEqual, "12")
			})

			Convey("rejects an unknown level", func() {
				w := do(h, http.MethodPost, "/v1/olympiad/score", `{"level": "galactic", "placement": 1}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["message"], ShouldContainSubstring, "level must be one of")
			})

			Convey("rejects a negative student count", func() {
				w := do(h, http.MethodPost, "/v1/olympiad/score", `{"level": "rayon", "placement": 1, "student_count": -1}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("sums achievements", func() {
				w := do(h, http.MethodPost, "/v1/olympiad/total",
					`{"achievements": [{"level": "RAYON", "placement": 1, "student_count": 2}, {"level": "region", "placement": 3}]}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["score"], ShouldEqual, "11")
			})

			Convey("lists rules by level", func() {
				w := do(h, http.MethodGet, "/v1/olympiad/rules", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w), ShouldContainKey, "rayon")
			})
		})

		Convey("Workflows and approvals", func() {
			Convey("a workflow is returned normalised", func() {
				w := do(h, http.MethodGet, "/v1/workflows/survey_response", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var wf struct {
					Chain []approval.NormalizedStep `json:"chain"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &wf), ShouldBeNil)
				So(wf.Chain, ShouldHaveLength, 3)
				So(wf.Chain[0].Title, ShouldEqual, "Schooladmin")
				So(wf.Chain[2].Required, ShouldBeFalse)
			})

			Convey("an unknown workflow is a 404", func() {
				w := do(h, http.MethodGet, "/v1/workflows/nope", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeBody(w)["code"], ShouldEqual, "not_found")
			})

			Convey("the next step honours required_only", func() {
				w := do(h, http.MethodPost, "/v1/approvals/next", `{"workflow_type": "survey_response", "current_level": 2}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["found"], ShouldEqual, true)

				w = do(h, http.MethodPost, "/v1/approvals/next", `{"workflow_type": "survey_response", "current_level": 2, "required_only": true}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["found"], ShouldEqual, false)
			})

			Convey("status reports full approval", func() {
				w := do(h, http.MethodPost, "/v1/approvals/status", `{"workflow_type": "survey_response", "current_level": 2}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["fully_approved"], ShouldEqual, true)
				So(body["state"], ShouldEqual, string(approval.StateFullyApproved))
			})

			Convey("decide applies an action", func() {
				w := do(h, http.MethodPost, "/v1/approvals/decide", `{"workflow_type": "survey_response", "current_level": 1, "action": "approve"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["status"], ShouldEqual, approval.StatusApproved)
			})

			Convey("approving a finished chain conflicts", func() {
				w := do(h, http.MethodPost, "/v1/approvals/decide", `{"workflow_type": "survey_response", "current_level": 2, "action": "approve"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(w)["code"], ShouldEqual, "already_completed")
			})

			Convey("an unknown action is rejected", func() {
				w := do(h, http.MethodPost, "/v1/approvals/decide", `{"workflow_type": "survey_response", "current_level": 1, "action": "escalate"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("Weights validation", func() {
			w := do(h, http.MethodPost, "/v1/weights/validate", `{"task_weight": 0.4, "survey_weight": 0.595, "manual_weight": 0}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["valid"], ShouldEqual, true)
			So(body["total"], ShouldEqual, "0.995")

			w = do(h, http.MethodPost, "/v1/weights/validate", `{"task_weight": 0.5, "survey_weight": 0.6}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["valid"], ShouldEqual, false)
		})

		Convey("Rating jobs", func() {
			job := `{"job_id": "j-9", "teacher_id": "t-9", "years": [{"year": "2024-2025", "academic": 80}]}`

			Convey("are accepted", func() {
				w := do(h, http.MethodPost, "/v1/ratings/jobs", job)
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(decodeBody(w)["job_id"], ShouldEqual, "j-9")
				So(deps.jobs, ShouldHaveLength, 1)
				So(deps.jobs[0].Years[0].Academic.Equal(d("80")), ShouldBeTrue)
			})

			Convey("get a generated ID when none is given", func() {
				w := do(h, http.MethodPost, "/v1/ratings/jobs", `{"teacher_id": "t-9", "years": [{"year": "2024-2025"}]}`)
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(decodeBody(w)["job_id"], ShouldEqual, "generated")
			})

			Convey("duplicates are acknowledged", func() {
				deps.submitErr = service.ErrDuplicateJob
				w := do(h, http.MethodPost, "/v1/ratings/jobs", job)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["duplicate"], ShouldEqual, true)
			})

			Convey("a full queue pushes back", func() {
				deps.submitErr = service.ErrQueueFull
				w := do(h, http.MethodPost, "/v1/ratings/jobs", job)
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeBody(w)["code"], ShouldEqual, "backpressure")
			})

			Convey("scores outside 0..100 are rejected", func() {
				w := do(h, http.MethodPost, "/v1/ratings/jobs", `{"teacher_id": "t-9", "years": [{"year": "2024-2025", "award": 101}]}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.jobs, ShouldBeEmpty)
			})

			Convey("a job without years is rejected", func() {
				w := do(h, http.MethodPost, "/v1/ratings/jobs", `{"teacher_id": "t-9", "years": []}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("a job repeating a year is rejected", func() {
				w := do(h, http.MethodPost, "/v1/ratings/jobs",
					`{"job_id": "j-dup", "teacher_id": "t-9", "years": [{"year": "2024-2025"}, {"year": "2024-2025"}]}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "bad_request")
				So(deps.jobs, ShouldBeEmpty)
			})

			Convey("a duplicate year reported by the service is a bad request", func() {
				deps.submitErr = fmt.Errorf("%w: 2024-2025", rating.ErrDuplicateYear)
				w := do(h, http.MethodPost, "/v1/ratings/jobs", `{"teacher_id": "t-9", "years": [{"year": "2024-2025"}]}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("Ratings lookups", func() {
			Convey("top defaults and caps the limit", func() {
				w := do(h, http.MethodGet, "/v1/ratings/top", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []types.Entry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 2)

				w = do(h, http.MethodGet, "/v1/ratings/top?limit=1", "")
				So(w.Code, ShouldEqual, http.StatusOK)

				w = do(h, http.MethodGet, "/v1/ratings/top?limit=51", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "limit_exceeded")

				w = do(h, http.MethodGet, "/v1/ratings/top?limit=abc", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "bad_request")
			})

			Convey("a known teacher is returned with its rank", func() {
				w := do(h, http.MethodGet, "/v1/ratings/t-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Rating model.StoredRating `json:"rating"`
					Rank   types.Entry        `json:"rank"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Rating.Result.Final.Equal(d("71.25")), ShouldBeTrue)
				So(resp.Rank.Rank, ShouldEqual, 1)
			})

			Convey("an unknown teacher is a 404", func() {
				w := do(h, http.MethodGet, "/v1/ratings/t-404", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("Admin reload", func() {
			w := do(h, http.MethodPost, "/v1/admin/reload", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["version"], ShouldEqual, "v-2")

			deps.reloadErr = errors.New("db down")
			w = do(h, http.MethodPost, "/v1/admin/reload", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeBody(w)["code"], ShouldEqual, "reload_failed")
		})

		Convey("CORS preflight is answered", func() {
			req := httptest.NewRequest(http.MethodOptions, "/v1/growth/resolve", http.NoBody)
			req.Header.Set("Origin", "https://portal.example.edu")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestServer_RateLimit(t *testing.T) {
	Convey("Given a server limited to one request", t, func() {
		h := api.NewServer(newFakeDeps(), fakeStats{}, api.WithRateLimit(0.001, 1)).Handler(context.Background())

		Convey("The second request is rejected", func() {
			w := do(h, http.MethodGet, "/v1/olympiad/rules", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			w = do(h, http.MethodGet, "/v1/olympiad/rules", "")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeBody(w)["code"], ShouldEqual, "rate_limited")
			So(w.Header().Get("Retry-After"), ShouldEqual, "1")

			req := httptest.NewRequest(http.MethodGet, "/v1/olympiad/rules", http.NoBody)
			req.RemoteAddr = "198.51.100.7:4000"
			w = httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Operational routes are not limited", func() {
			for i := 0; i < 3; i++ {
				So(do(h, http.MethodGet, "/stats", "").Code, ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestErrorClassification(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		err := api.WrapKind("api.op", api.ErrBadRequest, errors.New("boom"))

		Convey("The kind and cause are both visible", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Wrap keeps nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})

		Convey("NewKind has no cause", func() {
			So(api.NewKind("api.op", api.ErrRateLimited).Error(), ShouldEqual, "api.op: rate limited")
		})
	})
}
