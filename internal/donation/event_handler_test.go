package donation_test

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/sonlife/sonlife-giving/internal/core/events"
	"github.com/sonlife/sonlife-giving/internal/donation"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventHandler", func() {
	var (
		buf *bytes.Buffer
		bus *events.EventBus
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		lg := slog.New(slog.NewTextHandler(buf, nil))
		bus = events.NewEventBus(quietLogger)
		donation.NewEventHandler(lg).RegisterEventHandlers(bus)
	})

	It("raises save failures at error level with what staff need to reconcile", func() {
		ev := events.NewDonationSaveFailedEvent("SONLIFE-1-abc", "jane@example.com", "100.00", "GHS", "4099", "store down")
		Expect(bus.PublishSync(context.Background(), ev)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("level=ERROR"))
		Expect(out).To(ContainSubstring("reference=SONLIFE-1-abc"))
		Expect(out).To(ContainSubstring("transaction_id=4099"))
		Expect(out).To(ContainSubstring("email=jane@example.com"))
	})

	It("logs completed donations", func() {
		ev := events.NewDonationCompletedEvent("SONLIFE-2-abc", "jane@example.com", "Jane Doe", "100.00", "GHS", "tithe", "one-time", "4100")
		Expect(bus.PublishSync(context.Background(), ev)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("donation received"))
		Expect(buf.String()).To(ContainSubstring("giving_type=tithe"))
	})

	It("rejects payloads of the wrong type", func() {
		ev := events.BaseEvent{ID: "x", Type: events.EventTypeDonationCompleted}
		Expect(bus.PublishSync(context.Background(), ev)).NotTo(Succeed())
	})
})
