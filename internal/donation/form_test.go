package donation_test

import (
	"strings"

	"github.com/sonlife/sonlife-giving/internal/currency"
	"github.com/sonlife/sonlife-giving/internal/donation"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Form", func() {
	It("accepts a complete form and normalizes it", func() {
		form := validForm()
		form.Name = "  Mary-Jane O'Neil "
		form.Email = " mary@example.com "
		form.Amount = " 49.50 "

		req, err := form.Validate()
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Name).To(Equal("Mary-Jane O'Neil"))
		Expect(req.Email).To(Equal("mary@example.com"))
		Expect(req.Amount.Equal(decimal.RequireFromString("49.5"))).To(BeTrue())
		Expect(req.GivingType).To(Equal(donation.GivingTithe))
		Expect(req.Currency).To(Equal(currency.GHS))
	})

	It("reports one message for every bad field", func() {
		_, err := donation.Form{Name: "J", Email: "not-an-email", Amount: "abc"}.Validate()
		Expect(err).To(HaveOccurred())

		fields := donation.FieldErrors(err)
		Expect(fields).To(HaveLen(6))
		Expect(fields).To(HaveKeyWithValue("name", "Name must be at least 2 characters."))
		Expect(fields).To(HaveKeyWithValue("email", "Please enter a valid email address."))
		Expect(fields).To(HaveKeyWithValue("amount", "Amount must be a valid number."))
		Expect(fields).To(HaveKeyWithValue("giving_type", "Please select a giving type."))
		Expect(fields).To(HaveKeyWithValue("frequency", "Please select a giving frequency."))
		Expect(fields).To(HaveKeyWithValue("currency", "Please select a currency."))
	})

	DescribeTable("name rules",
		func(name string, message string) {
			form := validForm()
			form.Name = name
			_, err := form.Validate()
			if message == "" {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(donation.FieldErrors(err)).To(HaveKeyWithValue("name", message))
		},
		Entry("two letters", "Jo", ""),
		Entry("whitespace only", "   ", "Name must be at least 2 characters."),
		Entry("digits", "Jane 2", "Name can only contain letters, spaces, hyphens and apostrophes."),
		Entry("100 characters", strings.Repeat("a", 100), ""),
		Entry("101 characters", strings.Repeat("a", 101), "Name must not exceed 100 characters."),
	)

	DescribeTable("amount bounds",
		func(amount string, message string) {
			form := validForm()
			form.Amount = amount
			_, err := form.Validate()
			if message == "" {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(donation.FieldErrors(err)).To(HaveKeyWithValue("amount", message))
		},
		Entry("empty", "", "Amount must be a valid number."),
		Entry("zero", "0", "Amount must be greater than 0."),
		Entry("negative", "-5", "Amount must be greater than 0."),
		Entry("one cent", "0.01", ""),
		Entry("the maximum", "1000000", ""),
		Entry("over the maximum", "1000000.01", "Amount must not exceed 1,000,000."),
		Entry("rounds to nothing", "0.004", "Amount can have at most 2 decimal places."),
		Entry("half a cent", "0.005", "Amount can have at most 2 decimal places."),
		Entry("fraction of a cent over the maximum", "1000000.004", "Amount can have at most 2 decimal places."),
		Entry("trailing zeros", "12.500", ""),
	)

	It("caps email length", func() {
		form := validForm()
		form.Email = strings.Repeat("a", 250) + "@example.com"
		_, err := form.Validate()
		Expect(donation.FieldErrors(err)).To(HaveKeyWithValue("email", "Email must not exceed 255 characters."))
	})

	It("rejects currencies without a policy", func() {
		form := validForm()
		form.Currency = "EUR"
		_, err := form.Validate()
		Expect(donation.FieldErrors(err)).To(HaveKeyWithValue("currency", "Please select a currency."))
	})
})

var _ = Describe("FormState", func() {
	It("starts with tithe, one-time and cedis", func() {
		s := donation.NewFormState()
		Expect(s.GivingType).To(Equal("tithe"))
		Expect(s.Frequency).To(Equal("one-time"))
		Expect(s.Currency).To(Equal("GHS"))
		Expect(s.QuickAmounts()).To(Equal([]int64{20, 50, 100, 200, 500, 1000}))
	})

	It("clears the amount when the currency changes", func() {
		s := donation.NewFormState()
		s.Set("amount", "200")
		s.Set("currency", "GHS")
		Expect(s.Amount).To(Equal("200"))

		s.Set("currency", "USD")
		Expect(s.Amount).To(BeEmpty())
		Expect(s.QuickAmounts()).To(Equal([]int64{5, 10, 20, 50, 100, 200}))
	})

	It("describes the form for the website", func() {
		d, err := donation.FormDefaults("USD")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Symbol).To(Equal("$"))
		Expect(d.GivingTypes).To(ConsistOf("tithe", "missions", "building", "outreach"))

		_, err = donation.FormDefaults("EUR")
		Expect(err).To(HaveOccurred())
	})
})
