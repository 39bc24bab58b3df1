package errkind_test

import (
	"errors"
	"testing"

	"github.com/okian/stride/pkg/errkind"
	. "github.com/smartystreets/goconvey/convey"
)

var errSample = errors.New("sample kind")

func TestErrkind(t *testing.T) {
	Convey("Given a sentinel kind and a cause", t, func() {
		cause := errors.New("disk on fire")

		Convey("When wrapping with a kind", func() {
			err := errkind.WrapKind("store.create", errSample, cause)

			Convey("Then both the kind and the cause match", func() {
				So(errors.Is(err, errSample), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "store.create: sample kind: disk on fire")
				So(errkind.Op(err), ShouldEqual, "store.create")
			})
		})

		Convey("When creating a bare kind", func() {
			err := errkind.NewKind("api.post", errSample)

			Convey("Then the message carries op and kind", func() {
				So(errors.Is(err, errSample), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "api.post: sample kind")
			})
		})

		Convey("When wrapping nil", func() {
			So(errkind.Wrap("noop", nil), ShouldBeNil)
			So(errkind.WrapKind("noop", errSample, nil), ShouldBeNil)
		})

		Convey("When wrapping without a kind", func() {
			err := errkind.Wrap("svc.score", cause)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, errSample), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "svc.score: disk on fire")
		})
	})
}
