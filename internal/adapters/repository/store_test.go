package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/edurating/internal/adapters/repository"
	"github.com/okian/edurating/internal/domain/model"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func stored(teacherID, final string) model.StoredRating {
	return model.StoredRating{
		JobID: "job-" + teacherID + "-" + final,
		Result: rating.Result{
			TeacherID:   teacherID,
			Final:       decimal.RequireFromString(final),
			GrowthBonus: decimal.NewFromInt(2),
		},
	}
}

func TestResultStore_UpdateBest(t *testing.T) {
	Convey("Given an empty result store", t, func() {
		ctx := context.Background()
		store := repository.NewResultStore()

		Convey("The first rating is stored", func() {
			ok, err := store.UpdateBest(ctx, stored("t1", "70"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(store.Count(ctx), ShouldEqual, 1)
		})

		Convey("Only a strictly higher final replaces the best", func() {
			_, _ = store.UpdateBest(ctx, stored("t1", "70"))

			ok, _ := store.UpdateBest(ctx, stored("t1", "65"))
			So(ok, ShouldBeFalse)
			ok, _ = store.UpdateBest(ctx, stored("t1", "70"))
			So(ok, ShouldBeFalse)
			ok, _ = store.UpdateBest(ctx, stored("t1", "70.5"))
			So(ok, ShouldBeTrue)

			r, entry, err := store.Get(ctx, "t1")
			So(err, ShouldBeNil)
			So(r.Result.Final.String(), ShouldEqual, "70.5")
			So(entry.Rank, ShouldEqual, 1)
		})

		Convey("Unknown teachers are not found", func() {
			_, _, err := store.Get(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestResultStore_Ranking(t *testing.T) {
	Convey("Given teachers with tied finals", t, func() {
		ctx := context.Background()
		store := repository.NewResultStore()
		for _, r := range []model.StoredRating{
			stored("carol", "80"),
			stored("alice", "91.25"),
			stored("bob", "80"),
			stored("dave", "60"),
		} {
			_, err := store.UpdateBest(ctx, r)
			So(err, ShouldBeNil)
		}

		Convey("TopN orders by final then teacher ID with dense ranks", func() {
			top, err := store.TopN(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 4)

			var got []string
			for _, e := range top {
				got = append(got, fmt.Sprintf("%d:%s", e.Rank, e.TeacherID))
			}
			So(got, ShouldResemble, []string{"1:alice", "2:bob", "2:carol", "3:dave"})
		})

		Convey("TopN truncates to n", func() {
			top, err := store.TopN(ctx, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[1].TeacherID, ShouldEqual, "bob")
		})

		Convey("Get reports the shared rank", func() {
			_, entry, err := store.Get(ctx, "carol")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 2)
		})

		Convey("Ranks follow later improvements", func() {
			_, _ = store.UpdateBest(ctx, stored("dave", "95"))
			_, entry, err := store.Get(ctx, "dave")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 1)
		})

		Convey("Non-positive limits are rejected", func() {
			_, err := store.TopN(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})
	})
}

func TestResultStore_Concurrent(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		ctx := context.Background()
		store := repository.NewResultStore()

		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_, _ = store.UpdateBest(ctx, stored(fmt.Sprintf("t%d", i), fmt.Sprintf("%d", w*10+i%7)))
					_, _ = store.TopN(ctx, 5)
				}
			}(w)
		}
		wg.Wait()

		Convey("Every teacher keeps exactly one best entry", func() {
			So(store.Count(ctx), ShouldEqual, 50)
			top, err := store.TopN(ctx, 100)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 50)
			So(top[0].Rank, ShouldEqual, 1)
		})
	})
}
