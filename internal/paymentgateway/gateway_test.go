package paymentgateway_test

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/currency"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

type stubLoader struct {
	err   error
	calls int
}

func (l *stubLoader) Load(ctx context.Context) error {
	l.calls++
	return l.err
}

// fakePopup records the setup and lets the test play the donor.
type fakePopup struct {
	err  error
	last paymentgateway.SetupConfig
}

func (p *fakePopup) Setup(ctx context.Context, cfg paymentgateway.SetupConfig) (*paymentgateway.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.last = cfg
	return &paymentgateway.Session{AuthorizationURL: "https://checkout.paystack.com/" + cfg.Ref}, nil
}

var _ = Describe("Adapter", func() {
	var (
		loader  *stubLoader
		popup   *fakePopup
		adapter *paymentgateway.Adapter
		req     paymentgateway.PaymentRequest
	)

	BeforeEach(func() {
		loader = &stubLoader{}
		popup = &fakePopup{}
		adapter = paymentgateway.NewAdapter("pk_test_123", loader, popup, quietLogger)
		req = paymentgateway.PaymentRequest{
			Reference:  "SONLIFE-1700000000000-abc123def456g",
			Email:      "jane@example.com",
			Name:       "Jane Doe",
			Amount:     decimal.NewFromInt(100),
			Currency:   currency.GHS,
			GivingType: "tithe",
			Frequency:  "one-time",
		}
	})

	It("opens the popup with the minor-unit amount and custom fields", func() {
		checkout, err := adapter.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(checkout.AuthorizationURL).To(HaveSuffix(req.Reference))

		Expect(popup.last.Key).To(Equal("pk_test_123"))
		Expect(popup.last.Amount).To(BeEquivalentTo(10000))
		Expect(popup.last.Currency).To(Equal("GHS"))
		Expect(popup.last.Ref).To(Equal(req.Reference))
		Expect(popup.last.Metadata.Value("name")).To(Equal("Jane Doe"))
		Expect(popup.last.Metadata.Value("giving_type")).To(Equal("tithe"))
		Expect(popup.last.Metadata.Value("frequency")).To(Equal("one-time"))
		Expect(popup.last.Metadata.CustomFields[1].DisplayName).To(Equal("Giving Type"))
		Expect(adapter.IsPending(req.Reference)).To(BeTrue())
	})

	It("resolves with success when the gateway calls back", func() {
		checkout, err := adapter.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		go popup.last.Callback(paymentgateway.Transaction{Status: "success", Message: "Approved", TransactionID: "42"})

		outcome, err := checkout.Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Kind).To(Equal(paymentgateway.OutcomeSuccess))
		Expect(outcome.Transaction.Reference).To(Equal(req.Reference))
		Expect(outcome.Transaction.TransactionID).To(Equal("42"))
		Expect(adapter.IsPending(req.Reference)).To(BeFalse())
	})

	It("resolves as cancelled when the donor closes the popup", func() {
		checkout, err := adapter.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		popup.last.OnClose()

		outcome, ok := checkout.Outcome()
		Expect(ok).To(BeTrue())
		Expect(outcome.Kind).To(Equal(paymentgateway.OutcomeCancelled))
		Expect(outcome.Transaction).To(BeNil())
	})

	It("ignores a close after a successful callback", func() {
		checkout, err := adapter.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		popup.last.Callback(paymentgateway.Transaction{Status: "success"})
		popup.last.OnClose()
		Expect(adapter.Cancel(req.Reference)).To(MatchError(apperrors.ErrCheckoutNotFound))

		outcome, _ := checkout.Outcome()
		Expect(outcome.Kind).To(Equal(paymentgateway.OutcomeSuccess))
	})

	It("waits without a deadline of its own", func() {
		checkout, err := adapter.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err = checkout.Wait(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(adapter.IsPending(req.Reference)).To(BeTrue())
	})

	Describe("failures", func() {
		It("reports a missing public key without loading the script", func() {
			adapter = paymentgateway.NewAdapter("", loader, popup, quietLogger)
			_, err := adapter.Open(context.Background(), req)
			Expect(errors.Is(err, apperrors.ErrGatewayNotConfigured)).To(BeTrue())
			Expect(loader.calls).To(BeZero())
		})

		It("reports a script load failure", func() {
			loader.err = errors.New("network down")
			_, err := adapter.Open(context.Background(), req)
			Expect(errors.Is(err, apperrors.ErrGatewayScriptLoad)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("network down"))
		})

		It("reports a popup failure and forgets the reference", func() {
			popup.err = errors.New("initialize rejected")
			_, err := adapter.Open(context.Background(), req)
			Expect(errors.Is(err, apperrors.ErrGatewayPopupInit)).To(BeTrue())
			Expect(adapter.IsPending(req.Reference)).To(BeFalse())
		})

		It("rejects unsupported currencies", func() {
			req.Currency = "EUR"
			_, err := adapter.Open(context.Background(), req)
			Expect(errors.Is(err, apperrors.ErrUnsupportedCurrency)).To(BeTrue())
		})

		It("refuses to open two popups for one reference", func() {
			_, err := adapter.Open(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			_, err = adapter.Open(context.Background(), req)
			Expect(errors.Is(err, apperrors.ErrDuplicateReference)).To(BeTrue())
		})

		It("gives each category its own donor message", func() {
			Expect(paymentgateway.UserMessage(apperrors.ErrGatewayScriptLoad)).To(ContainSubstring("ad blockers"))
			Expect(paymentgateway.UserMessage(apperrors.ErrGatewayNotConfigured)).To(ContainSubstring("contact support"))
			Expect(paymentgateway.UserMessage(apperrors.ErrGatewayPopupInit)).To(ContainSubstring("payment window"))
		})
	})
})
