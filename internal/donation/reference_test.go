package donation_test

import (
	"time"

	"github.com/sonlife/sonlife-giving/internal/donation"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ReferenceGenerator", func() {
	It("formats prefix, millis and a 13 character suffix", func() {
		g := &donation.ReferenceGenerator{
			Clock:   func() time.Time { return time.UnixMilli(1700000000123) },
			Entropy: func() string { return "3F2A-9B1C-77D0-4E5F-AA11" },
		}
		Expect(g.Generate()).To(Equal("SONLIFE-1700000000123-3f2a9b1c77d04"))
	})

	It("produces well-formed, distinct references", func() {
		g := donation.NewReferenceGenerator()
		seen := map[string]bool{}
		for i := 0; i < 500; i++ {
			ref := g.Generate()
			Expect(ref).To(MatchRegexp(`^SONLIFE-\d+-[a-z0-9]{13}$`))
			Expect(donation.ValidReference(ref)).To(BeTrue())
			Expect(seen).NotTo(HaveKey(ref))
			seen[ref] = true
		}
	})

	It("tops up a short entropy source", func() {
		g := &donation.ReferenceGenerator{
			Clock:   time.Now,
			Entropy: func() string { return "ab" },
		}
		Expect(g.Generate()).To(MatchRegexp(`^SONLIFE-\d+-ab[a-z0-9]{11}$`))
	})

	DescribeTable("ValidReference",
		func(ref string, valid bool) {
			Expect(donation.ValidReference(ref)).To(Equal(valid))
		},
		Entry("generated shape", "SONLIFE-1700000000000-abc123def456g", true),
		Entry("empty", "", false),
		Entry("wrong prefix", "GIVING-1700000000000-abc123def456g", false),
		Entry("short suffix", "SONLIFE-1700000000000-abc", false),
		Entry("uppercase suffix", "SONLIFE-1700000000000-ABC123DEF456G", false),
		Entry("non-numeric time", "SONLIFE-17x0-abc123def456g", false),
	)
})
