package sqlstore

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/podium/internal/domain/ledger"
	"github.com/okian/podium/internal/domain/model"
)

// openPostgres connects to PODIUM_TEST_POSTGRES_DSN; the test is skipped without it.
func openPostgres(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := os.Getenv("PODIUM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PODIUM_TEST_POSTGRES_DSN not set")
	}
	stream := "scores_t" + strconv.FormatInt(time.Now().UnixNano(), 36)
	s, err := Open(context.Background(), DriverPostgres, dsn,
		WithStreams(stream),
		WithCreateStreamTables(true),
	)
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = s.DB().ExecContext(ctx, "DROP TABLE IF EXISTS "+stream)
		_, _ = s.DB().ExecContext(ctx, "DELETE FROM bonus_grants WHERE stream_id = $1", stream)
		_ = s.Close()
	})
	return s, stream
}

func TestPostgresStoreAndLedger(t *testing.T) {
	s, stream := openPostgres(t)

	Convey("Given a postgres store and ledger", t, func() {
		ctx := context.Background()
		l := NewLedger(s.DB())
		So(s.Append(ctx, record(stream, "P1", "S1", 40, time.Now())), ShouldBeNil)

		Convey("When summing and updating the stream", func() {
			n, err := s.AddToScore(ctx, stream, "P1", "S1", 10)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			sums, err := s.SumByPlayer(ctx, stream)
			So(err, ShouldBeNil)
			So(sums["P1"].Total, ShouldBeGreaterThanOrEqualTo, 50)
		})

		Convey("When many goroutines reserve one key", func() {
			session := "S-" + strconv.FormatInt(time.Now().UnixNano(), 36)
			var (
				wg       sync.WaitGroup
				reserved atomic.Int32
				failures atomic.Int32
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					out, err := l.Reserve(ctx, model.BonusGrant{
						ID: session + "-" + strconv.Itoa(i), PlayerID: "P1", SessionID: session,
						StreamID: stream, Amount: 10, GrantedAt: time.Now(),
					})
					switch {
					case err != nil:
						failures.Add(1)
					case out == ledger.Reserved:
						reserved.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one reservation lands", func() {
				So(failures.Load(), ShouldEqual, 0)
				So(reserved.Load(), ShouldEqual, 1)

				_, found, err := l.Lookup(ctx, model.GrantKey{PlayerID: "P1", SessionID: session, StreamID: stream})
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
			})
		})
	})
}
