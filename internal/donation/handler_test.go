package donation_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	gatewaytypes "github.com/sonlife/sonlife-giving/internal/core/datamodel/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/transport"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubVerifier struct {
	status string
	err    error
}

func (v stubVerifier) Verify(ctx context.Context, reference string) (*gatewaytypes.TransactionData, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &gatewaytypes.TransactionData{ID: 555, Status: v.status, Reference: reference, GatewayResponse: "Approved"}, nil
}

const webhookSecret = "sk_test_secret"

type hmacVerifier struct{}

func (hmacVerifier) VerifySignature(body []byte, signature string) bool {
	return hmac.Equal([]byte(sign(body)), []byte(signature))
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("Donation HTTP handlers", func() {
	var (
		repo     *flakyRepo
		popup    *donorPopup
		service  *donation.Service
		workflow *donation.Workflow
		handler  *donation.Handler
		webhook  *donation.WebhookHandler
		router   *chi.Mux
	)

	do := func(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		switch b := body.(type) {
		case nil:
		case []byte:
			buf.Write(b)
		default:
			Expect(json.NewEncoder(&buf).Encode(b)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	submit := func() donation.SubmitResponse {
		w := do(http.MethodPost, "/donations", validForm())
		Expect(w.Code).To(Equal(http.StatusAccepted))
		var resp donation.SubmitResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	BeforeEach(func() {
		repo = newFlakyRepo()
		popup = newDonorPopup()
		adapter := paymentgateway.NewAdapter("pk_test_123", okLoader{}, popup, quietLogger)
		service = donation.NewService(repo, nil, quietLogger)
		workflow = donation.NewWorkflow(service, adapter, nil, nil, donation.WorkflowConfig{}, quietLogger)
		confirmation := donation.NewConfirmationService(service, workflow, quietLogger)
		base := transport.NewBaseHandler(quietLogger)
		handler = donation.NewHandler(base, service, workflow, confirmation, nil, "/give")
		webhook = donation.NewWebhookHandler(base, service, workflow, hmacVerifier{})

		router = chi.NewRouter()
		router.Get("/donations/form", handler.GetForm)
		router.Post("/donations", handler.Submit)
		router.Get("/donations/submissions/{reference}", handler.GetSubmission)
		router.Post("/donations/submissions/{reference}/cancel", handler.CancelSubmission)
		router.Post("/donations/submissions/{reference}/complete", handler.CompleteSubmission)
		router.Get("/donations/confirmation", handler.GetConfirmation)
		router.Get("/donation/success", handler.SuccessPage)
		router.Get("/donations", handler.ListDonations)
		router.Get("/donations/stats", handler.GetStats)
		router.Patch("/donations/{reference}/status", handler.UpdateStatus)
		router.Post("/payment/webhook", webhook.HandlePaystackWebhook)
	})

	AfterEach(func() {
		workflow.Shutdown()
	})

	It("serves the form defaults", func() {
		w := do(http.MethodGet, "/donations/form?currency=USD", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"quick_amounts":[5,10,20,50,100,200]`))
	})

	It("answers a bad form with field errors", func() {
		form := validForm()
		form.Email = "nope"
		w := do(http.MethodPost, "/donations", form)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("Please enter a valid email address."))
	})

	It("answers a gateway failure with the donor message", func() {
		popup.err = errors.New("boom")
		w := do(http.MethodPost, "/donations", validForm())
		Expect(w.Code).To(Equal(http.StatusBadGateway))
		Expect(w.Body.String()).To(ContainSubstring("Payment error: Could not open the payment window."))
	})

	It("completes a payment end to end and shows the receipt", func() {
		resp := submit()
		Expect(resp.State).To(Equal(donation.StateAwaitingPayment))

		w := do(http.MethodGet, "/donations/confirmation?reference="+resp.Reference, nil)
		Expect(w.Body.String()).To(ContainSubstring(`"state":"loading"`))

		w = do(http.MethodPost, "/donations/submissions/"+resp.Reference+"/complete", donation.CompleteRequest{
			Reference: resp.Reference, Status: "success", Message: "Approved", Transaction: "321",
		})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"state":"completed"`))

		w = do(http.MethodGet, "/donations/confirmation?reference="+resp.Reference, nil)
		Expect(w.Body.String()).To(ContainSubstring(`"state":"found"`))
		Expect(w.Body.String()).To(ContainSubstring("₵100.00"))

		w = do(http.MethodGet, "/donation/success?reference="+resp.Reference, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
		Expect(w.Body.String()).To(ContainSubstring("Thank you"))
	})

	It("refuses a callback the gateway does not confirm", func() {
		handler.Verifier = stubVerifier{status: gatewaytypes.TransactionAbandoned}
		resp := submit()

		w := do(http.MethodPost, "/donations/submissions/"+resp.Reference+"/complete", donation.CompleteRequest{Status: "success"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(repo.creates).To(BeZero())
	})

	It("uses the verified transaction id when a verifier is set", func() {
		handler.Verifier = stubVerifier{status: gatewaytypes.TransactionSuccess}
		resp := submit()

		w := do(http.MethodPost, "/donations/submissions/"+resp.Reference+"/complete", donation.CompleteRequest{Status: "success", Transaction: "forged"})
		Expect(w.Code).To(Equal(http.StatusOK))

		d, err := service.GetDonationByReference(context.Background(), resp.Reference)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.TransactionID).To(Equal("555"))
	})

	It("cancels when the donor closes the popup", func() {
		resp := submit()
		w := do(http.MethodPost, "/donations/submissions/"+resp.Reference+"/cancel", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("Payment cancelled."))

		w = do(http.MethodGet, "/donations/submissions/"+resp.Reference, nil)
		Expect(w.Body.String()).To(ContainSubstring(`"state":"cancelled"`))

		w = do(http.MethodPost, "/donations/submissions/"+resp.Reference+"/cancel", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("renders the not found page with a way back", func() {
		w := do(http.MethodGet, "/donation/success", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`href="/give"`))
	})

	Describe("staff endpoints", func() {
		BeforeEach(func() {
			_, err := service.CreateDonation(context.Background(), newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists by email", func() {
			w := do(http.MethodGet, "/donations?email=jane@example.com", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"count":1`))
		})

		It("reports stats for every fund", func() {
			w := do(http.MethodGet, "/donations/stats", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var stats map[string]map[string]interface{}
			Expect(json.Unmarshal(w.Body.Bytes(), &stats)).To(Succeed())
			Expect(stats["by_giving_type"]).To(HaveLen(4))
		})

		It("updates the status", func() {
			w := do(http.MethodPatch, "/donations/SONLIFE-1-a/status", donation.UpdateStatusRequest{Status: "failed"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"status":"failed"`))

			w = do(http.MethodPatch, "/donations/SONLIFE-1-a/status", donation.UpdateStatusRequest{Status: "refunded"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			w = do(http.MethodPatch, "/donations/SONLIFE-9-z/status", donation.UpdateStatusRequest{Status: "failed"})
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Paystack webhook", func() {
		chargeSuccess := func(reference string, metadata string) []byte {
			return []byte(`{"event":"charge.success","data":{"id":9001,"status":"success","reference":"` + reference +
				`","amount":2500,"currency":"USD","gateway_response":"Successful","metadata":` + metadata +
				`,"customer":{"email":"jane@example.com"}}}`)
		}

		It("rejects unsigned bodies", func() {
			w := do(http.MethodPost, "/payment/webhook", chargeSuccess("SONLIFE-1-x", `""`), paymentgateway.SignatureHeader, "bad")
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("completes an open checkout", func() {
			resp := submit()
			body := chargeSuccess(resp.Reference, `""`)
			w := do(http.MethodPost, "/payment/webhook", body, paymentgateway.SignatureHeader, sign(body))
			Expect(w.Code).To(Equal(http.StatusOK))

			Eventually(func() string {
				sub, _ := workflow.Status(resp.Reference)
				return string(sub.State)
			}, "2s", "10ms").Should(Equal("completed"))
		})

		It("records a paid charge this process never opened", func() {
			body := chargeSuccess("SONLIFE-1700000000000-zzzzzzzzzzzzz",
				`{"custom_fields":[{"display_name":"Name","variable_name":"name","value":"Jane Doe"},{"display_name":"Giving Type","variable_name":"giving_type","value":"missions"},{"display_name":"Frequency","variable_name":"frequency","value":"weekly"}]}`)
			w := do(http.MethodPost, "/payment/webhook", body, paymentgateway.SignatureHeader, sign(body))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("donation recorded"))

			d, err := service.GetDonationByReference(context.Background(), "SONLIFE-1700000000000-zzzzzzzzzzzzz")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Amount.String()).To(Equal("25"))
			Expect(d.GivingType).To(Equal(donation.GivingMissions))
			Expect(d.TransactionID).To(Equal("9001"))
		})

		It("ignores other events", func() {
			body := []byte(`{"event":"transfer.success","data":{}}`)
			w := do(http.MethodPost, "/payment/webhook", body, paymentgateway.SignatureHeader, sign(body))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("ignored"))
		})
	})
})
