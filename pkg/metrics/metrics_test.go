package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.leaderboardRequests.Inc()

			Convey("Then names carry namespace, subsystem and prefix", func() {
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_test_requests_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When passing zero values to options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithMetricPrefix(""),
				WithHistogramBuckets(nil),
				WithCustomLabels(nil),
				WithRefreshInterval(-time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "podium")
				So(manager.subsystem, ShouldEqual, "leaderboard")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
				So(manager.customLabels, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording grant outcomes", func() {
			before := testutil.ToFloat64(globalManager.grantOutcomes.WithLabelValues("GRANTED"))
			RecordGrantOutcome("GRANTED")
			RecordGrantOutcome("GRANTED")

			Convey("Then the labelled counter moves", func() {
				after := testutil.ToFloat64(globalManager.grantOutcomes.WithLabelValues("GRANTED"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording a failed stream read", func() {
			before := testutil.ToFloat64(globalManager.streamReadErrors.WithLabelValues("scores"))
			RecordStreamRead("scores", 1.5, true)
			RecordStreamRead("scores", 1.5, false)

			Convey("Then only the failure is counted as an error", func() {
				after := testutil.ToFloat64(globalManager.streamReadErrors.WithLabelValues("scores"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdatePlayersRanked(42)
			UpdateQueueSize(3)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.3)
			UpdateWorkerCount(2)
			UpdateWorkerActiveCount(2)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.playersRanked), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, 2)
			})
		})

		Convey("When recording everything else", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordLeaderboardRequest()
					RecordLeaderboardError()
					RecordAggregationLatency(3)
					RecordGrantLatency(4)
					RecordLedgerReserveLatency(1)
					RecordScoreUpdateLatency(1)
					RecordCompensation("released")
					RecordHTTPRequest("/leaderboard", "GET", "200")
					RecordHTTPRequestDuration("/leaderboard", "GET", "200", 12)
					RecordRateLimited("/leaderboard/bonus")
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordQueueProcessingLatency(5)
					RecordWorkerProcessingLatency(2)
					RecordWorkerError()
					RecordWorkerRetry()
					RecordErrorByComponent("grant", "data_source")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(10)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueueRate)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				RecordQueueEnqueue()
				RecordHTTPRequest("/leaderboard", "GET", "200")
			}()
		}
		wg.Wait()

		Convey("Then every increment is counted", func() {
			So(testutil.ToFloat64(globalManager.queueEnqueueRate)-before, ShouldEqual, 50)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordLeaderboardRequest()
		families, err := GetRegistry().Gather()

		Convey("Then it exposes podium metrics only", func() {
			So(err, ShouldBeNil)
			So(families, ShouldNotBeEmpty)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "podium_"), ShouldBeTrue)
			}
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager", t, func() {
		defer Configure(WithMetricsEnabled(true), WithRefreshInterval(defaultRefreshInterval))

		Convey("When recording is disabled", func() {
			Configure(WithMetricsEnabled(false))
			before := testutil.ToFloat64(globalManager.grantOutcomes.WithLabelValues("REJECTED_NOT_ELIGIBLE"))
			RecordGrantOutcome("REJECTED_NOT_ELIGIBLE")
			UpdateQueueSize(99)

			Convey("Then recorders leave every metric untouched", func() {
				So(Enabled(), ShouldBeFalse)
				So(testutil.ToFloat64(globalManager.grantOutcomes.WithLabelValues("REJECTED_NOT_ELIGIBLE")), ShouldEqual, before)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldNotEqual, 99)
			})

			Convey("And enabling it again resumes recording", func() {
				Configure(WithMetricsEnabled(true))
				RecordGrantOutcome("REJECTED_NOT_ELIGIBLE")
				So(testutil.ToFloat64(globalManager.grantOutcomes.WithLabelValues("REJECTED_NOT_ELIGIBLE")), ShouldEqual, before+1)
			})
		})

		Convey("When the refresh interval changes", func() {
			Configure(WithRefreshInterval(250 * time.Millisecond))

			Convey("Then the package reports it", func() {
				So(RefreshInterval(), ShouldEqual, 250*time.Millisecond)
			})
		})
	})
}
