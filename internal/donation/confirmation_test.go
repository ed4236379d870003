package donation_test

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/sonlife/sonlife-giving/internal/donation"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubInFlight map[string]bool

func (s stubInFlight) InFlight(reference string) bool { return s[reference] }

var _ = Describe("ConfirmationService", func() {
	const reference = "SONLIFE-1700000000000-abc123def456g"

	var (
		repo     *flakyRepo
		service  *donation.Service
		inflight stubInFlight
		lookup   *donation.ConfirmationService
		ctx      context.Context
	)

	BeforeEach(func() {
		repo = newFlakyRepo()
		service = donation.NewService(repo, nil, quietLogger)
		inflight = stubInFlight{}
		lookup = donation.NewConfirmationService(service, inflight, quietLogger)
		ctx = context.Background()
	})

	It("returns a formatted receipt for a stored donation", func() {
		d := newDonation(reference, "building", "GHS", "100")
		d.Frequency = donation.FrequencyMonthly
		_, err := service.CreateDonation(ctx, d)
		Expect(err).NotTo(HaveOccurred())

		c := lookup.Lookup(ctx, reference)
		Expect(c.State).To(Equal(donation.ConfirmationFound))
		Expect(c.Receipt.Amount).To(Equal("₵100.00"))
		Expect(c.Receipt.GivingLabel).To(Equal("Building Fund"))
		Expect(c.Receipt.FrequencyText).To(Equal("Monthly"))
		Expect(c.Receipt.Currency).To(Equal("GHS"))
		Expect(c.Receipt.Reference).To(Equal(reference))
		Expect(c.Receipt.Date).To(Equal(time.Now().Format("January 2, 2006")))
	})

	It("does not look anything up without a reference", func() {
		repo.getErr = errors.New("must not be called")
		Expect(lookup.Lookup(ctx, "").State).To(Equal(donation.ConfirmationNotFound))
		Expect(lookup.Lookup(ctx, "garbage").State).To(Equal(donation.ConfirmationNotFound))
	})

	It("is not found for an unknown reference", func() {
		Expect(lookup.Lookup(ctx, reference).State).To(Equal(donation.ConfirmationNotFound))
	})

	It("is not found when the store fails", func() {
		repo.getErr = errors.New("timeout")
		Expect(lookup.Lookup(ctx, reference).State).To(Equal(donation.ConfirmationNotFound))
	})

	It("is loading while the submission is still settling", func() {
		inflight[reference] = true
		Expect(lookup.Lookup(ctx, reference).State).To(Equal(donation.ConfirmationLoading))
	})

	Describe("success page", func() {
		It("renders the receipt", func() {
			_, _ = service.CreateDonation(ctx, newDonation(reference, "tithe", "USD", "25"))

			var buf bytes.Buffer
			Expect(donation.RenderSuccessPage(&buf, lookup.Lookup(ctx, reference), "/give")).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("$25.00"))
			Expect(buf.String()).To(ContainSubstring(reference))
		})

		It("links back to the give page when not found", func() {
			var buf bytes.Buffer
			Expect(donation.RenderSuccessPage(&buf, lookup.Lookup(ctx, ""), "/give")).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("Donation not found"))
			Expect(buf.String()).To(ContainSubstring(`href="/give"`))
		})

		It("refreshes itself while loading", func() {
			inflight[reference] = true
			var buf bytes.Buffer
			Expect(donation.RenderSuccessPage(&buf, lookup.Lookup(ctx, reference), "")).To(Succeed())
			Expect(buf.String()).To(ContainSubstring(`http-equiv="refresh"`))
		})
	})
})
