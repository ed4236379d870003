package donation_test

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Workflow", func() {
	var (
		repo     *flakyRepo
		bus      *recordingBus
		popup    *donorPopup
		adapter  *paymentgateway.Adapter
		service  *donation.Service
		workflow *donation.Workflow
		ctx      context.Context
	)

	settled := func(ref string) *donation.Submission {
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		sub, err := workflow.WaitSettled(wctx, ref)
		Expect(err).NotTo(HaveOccurred())
		return sub
	}

	BeforeEach(func() {
		repo = newFlakyRepo()
		bus = &recordingBus{}
		popup = newDonorPopup()
		adapter = paymentgateway.NewAdapter("pk_test_123", okLoader{}, popup, quietLogger)
		service = donation.NewService(repo, nil, quietLogger)
		workflow = donation.NewWorkflow(service, adapter, fixedReferences("aaaaaaaaaaaaa", "bbbbbbbbbbbbb"), bus, donation.WorkflowConfig{}, quietLogger)
		ctx = context.Background()
	})

	AfterEach(func() {
		workflow.Shutdown()
	})

	It("writes nothing until the donor pays", func() {
		sub, err := workflow.Submit(ctx, validForm())
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.Reference).To(Equal("SONLIFE-1700000000000-aaaaaaaaaaaaa"))
		Expect(sub.State).To(Equal(donation.StateAwaitingPayment))
		Expect(sub.AuthorizationURL).To(HaveSuffix(sub.Reference))

		Consistently(func() int { return repo.creates }, "50ms").Should(BeZero())
		Expect(workflow.InFlight(sub.Reference)).To(BeTrue())
	})

	It("records a completed donation after a successful payment", func() {
		sub, err := workflow.Submit(ctx, validForm())
		Expect(err).NotTo(HaveOccurred())

		popup.pay(sub.Reference, "4099")

		final := settled(sub.Reference)
		Expect(final.State).To(Equal(donation.StateCompleted))

		d, err := service.GetDonationByReference(ctx, sub.Reference)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Status).To(Equal(donation.StatusCompleted))
		Expect(d.TransactionID).To(Equal("4099"))
		Expect(d.Amount.String()).To(Equal("100"))
		Expect(d.GivingType).To(Equal(donation.GivingTithe))
		Expect(bus.types()).To(ContainElement("donation.completed"))
	})

	It("treats closing the popup as a neutral cancellation", func() {
		sub, err := workflow.Submit(ctx, validForm())
		Expect(err).NotTo(HaveOccurred())

		popup.close(sub.Reference)

		final := settled(sub.Reference)
		Expect(final.State).To(Equal(donation.StateCancelled))
		Expect(final.Message).To(Equal("Payment cancelled. You can try again when you're ready."))
		Expect(repo.creates).To(BeZero())
		Expect(bus.types()).To(ContainElement("donation.cancelled"))
		Expect(adapter.IsPending(sub.Reference)).To(BeFalse())
	})

	It("surfaces a save failure after payment without retrying", func() {
		repo.createErr = errors.New("connection refused")
		sub, err := workflow.Submit(ctx, validForm())
		Expect(err).NotTo(HaveOccurred())

		popup.pay(sub.Reference, "4100")

		final := settled(sub.Reference)
		Expect(final.State).To(Equal(donation.StateSaveFailed))
		Expect(final.Message).To(Equal("Payment succeeded but could not be saved. Please contact support."))
		Expect(repo.creates).To(Equal(1))
		Expect(bus.types()).To(ContainElement("donation.save_failed"))
	})

	It("never reaches the gateway with an invalid form", func() {
		form := validForm()
		form.Amount = "0"
		_, err := workflow.Submit(ctx, form)
		Expect(err).To(HaveOccurred())
		Expect(donation.FieldErrors(err)).To(HaveKey("amount"))
		Expect(popup.opened).To(BeEmpty())
	})

	It("never opens a checkout for an amount that rounds to nothing", func() {
		form := validForm()
		form.Amount = "0.004"
		_, err := workflow.Submit(ctx, form)
		Expect(donation.FieldErrors(err)).To(HaveKey("amount"))
		Expect(popup.opened).To(BeEmpty())
		Expect(repo.creates).To(BeZero())
	})

	It("returns gateway failures synchronously", func() {
		popup.err = errors.New("initialize rejected")
		_, err := workflow.Submit(ctx, validForm())
		Expect(errors.Is(err, apperrors.ErrGatewayPopupInit)).To(BeTrue())
		Expect(repo.creates).To(BeZero())
	})

	It("mints a new reference when one is already open", func() {
		workflow = donation.NewWorkflow(service, adapter, fixedReferences("aaaaaaaaaaaaa", "aaaaaaaaaaaaa", "ccccccccccccc"), bus, donation.WorkflowConfig{}, quietLogger)

		first, err := workflow.Submit(ctx, validForm())
		Expect(err).NotTo(HaveOccurred())
		second, err := workflow.Submit(ctx, validForm())
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Reference).NotTo(Equal(first.Reference))
		Expect(second.Reference).To(HaveSuffix("ccccccccccccc"))
	})

	It("relays website callbacks to the gateway", func() {
		sub, err := workflow.Submit(ctx, validForm())
		Expect(err).NotTo(HaveOccurred())

		Expect(workflow.Complete(sub.Reference, paymentgateway.Transaction{Status: "success", TransactionID: "7"})).To(Succeed())
		Expect(settled(sub.Reference).State).To(Equal(donation.StateCompleted))

		err = workflow.Cancel(sub.Reference)
		Expect(errors.Is(err, apperrors.ErrCheckoutNotFound)).To(BeTrue())
	})

	It("reports unknown submissions", func() {
		_, err := workflow.Status("SONLIFE-1-nope")
		Expect(errors.Is(err, apperrors.ErrSubmissionNotFound)).To(BeTrue())
	})
})
