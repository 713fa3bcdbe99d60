package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/edurating/internal/domain/types"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given a ranked entry", t, func() {
		entry := types.Entry{
			Rank:        1,
			TeacherID:   "teacher-42",
			Final:       decimal.RequireFromString("87.25"),
			GrowthBonus: decimal.NewFromInt(2),
		}

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(entry)
			So(err, ShouldBeNil)

			Convey("Then decimals are written as strings and empty institutions are omitted", func() {
				So(string(raw), ShouldEqual, `{"rank":1,"teacher_id":"teacher-42","final":"87.25","growth_bonus":"2"}`)
			})
		})
	})
}
