package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.scoresComputed.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_scores_computed_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are given", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "circle")
				So(manager.latencyBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a score", func() {
			before := testutil.ToFloat64(globalManager.scoresByLabel.WithLabelValues("Close"))
			RecordScore(85, "Close")

			Convey("Then the label counter increases", func() {
				after := testutil.ToFloat64(globalManager.scoresByLabel.WithLabelValues("Close"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateContactsTotal(6)
			UpdateReconnectWithoutInteraction(2)

			Convey("Then the gauges reflect the last value", func() {
				So(testutil.ToFloat64(globalManager.contactsTotal), ShouldEqual, 6)
				So(testutil.ToFloat64(globalManager.reconnectListSize), ShouldEqual, 2)
			})
		})

		Convey("When recording interactions", func() {
			before := testutil.ToFloat64(globalManager.interactionDuplicate)
			RecordInteractionLogged("CALL")
			RecordInteractionDuplicate()

			Convey("Then the duplicate counter increases", func() {
				So(testutil.ToFloat64(globalManager.interactionDuplicate)-before, ShouldEqual, 1)
			})
		})

		Convey("When recording HTTP, store and system metrics", func() {
			So(func() {
				RecordHTTPRequest("contacts", "GET", "200")
				RecordHTTPRequestDuration("contacts", "GET", "200", 4)
				RecordRateLimited("interactions")
				RecordStoreLatency("list_contacts", 1.5)
				RecordStoreError("get_contact")
				RecordScoringLatency(0.2)
				RecordErrorByComponent("store", "not_found")
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("contacts", "GET", "not_found")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordHTTPRequest("healthz", "GET", "200")
			families, err := GetRegistry().Gather()

			Convey("Then only circle metrics are exposed", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "circle_"), ShouldBeTrue)
				}
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				RecordScore(i*5, "Moderate")
				RecordHTTPRequest("contacts", "GET", "200")
			}(i)
		}
		wg.Wait()

		Convey("Then recording completes without races", func() {
			So(testutil.ToFloat64(globalManager.scoresByLabel.WithLabelValues("Moderate")), ShouldBeGreaterThanOrEqualTo, 20)
		})
	})
}
