package paymentgateway_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	gatewaytypes "github.com/sonlife/sonlife-giving/internal/core/datamodel/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Paystack client", func() {
	var (
		server *httptest.Server
		client *paymentgateway.Client
		got    *http.Request
		body   map[string]interface{}
	)

	BeforeEach(func() {
		got = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			body = nil
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/transaction/initialize":
				_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"SONLIFE-1-x"}}`))
			case "/transaction/verify/SONLIFE-1-x":
				_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"id":987,"status":"success","reference":"SONLIFE-1-x","amount":10000,"currency":"GHS","gateway_response":"Approved","metadata":""}}`))
			default:
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
			}
		}))
		client = paymentgateway.NewClient(paymentgateway.ClientConfig{
			BaseURL:     server.URL,
			SecretKey:   "sk_test_secret",
			CallbackURL: "https://sonlife.example/donation/success",
		}, quietLogger)
	})

	AfterEach(func() {
		server.Close()
	})

	It("initializes a transaction with bearer auth and the callback URL", func() {
		data, err := client.Initialize(context.Background(), &gatewaytypes.InitializeRequest{
			Email:     "jane@example.com",
			Amount:    10000,
			Currency:  "GHS",
			Reference: "SONLIFE-1-x",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(data.AuthorizationURL).To(Equal("https://checkout.paystack.com/abc"))
		Expect(got.Header.Get("Authorization")).To(Equal("Bearer sk_test_secret"))
		Expect(body).To(HaveKeyWithValue("callback_url", "https://sonlife.example/donation/success"))
		Expect(body).To(HaveKeyWithValue("amount", BeNumerically("==", 10000)))
	})

	It("rejects invalid initialize requests before calling out", func() {
		_, err := client.Initialize(context.Background(), &gatewaytypes.InitializeRequest{Reference: "x"})
		Expect(err).To(MatchError(ContainSubstring("validation error")))
		Expect(got).To(BeNil())
	})

	It("verifies a transaction", func() {
		data, err := client.Verify(context.Background(), "SONLIFE-1-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(data.Status).To(Equal(gatewaytypes.TransactionSuccess))

		tx := paymentgateway.ToTransaction(data)
		Expect(tx.TransactionID).To(Equal("987"))
		Expect(tx.Message).To(Equal("Approved"))
		Expect(data.CustomMetadata().CustomFields).To(BeEmpty())
	})

	It("surfaces Paystack error messages", func() {
		_, err := client.Verify(context.Background(), "unknown")
		Expect(err).To(MatchError(ContainSubstring("Transaction reference not found")))
	})

	It("fails fast without a secret key", func() {
		bare := paymentgateway.NewClient(paymentgateway.ClientConfig{BaseURL: server.URL}, quietLogger)
		_, err := bare.Verify(context.Background(), "SONLIFE-1-x")
		Expect(err).To(MatchError(ContainSubstring("secret key")))
		Expect(bare.HasSecretKey()).To(BeFalse())
	})

	It("checks webhook signatures", func() {
		payload := []byte(`{"event":"charge.success"}`)
		mac := hmac.New(sha512.New, []byte("sk_test_secret"))
		mac.Write(payload)
		sig := hex.EncodeToString(mac.Sum(nil))

		Expect(client.VerifySignature(payload, sig)).To(BeTrue())
		Expect(client.VerifySignature(payload, "deadbeef")).To(BeFalse())
		Expect(client.VerifySignature([]byte(`{"event":"charge.failed"}`), sig)).To(BeFalse())
	})

	It("opens the hosted checkout through HostedPopup", func() {
		popup := paymentgateway.NewHostedPopup(client)
		session, err := popup.Setup(context.Background(), paymentgateway.SetupConfig{
			Key: "pk", Email: "jane@example.com", Amount: 500, Currency: "USD", Ref: "SONLIFE-1-x",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(session.AccessCode).To(Equal("abc"))
		Expect(body).To(HaveKey("metadata"))
	})
})
