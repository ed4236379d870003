package donation_test

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/sonlife/sonlife-giving/internal"
	datamodel "github.com/sonlife/sonlife-giving/internal/core/datamodel/donation"
	"github.com/sonlife/sonlife-giving/internal/currency"
	"github.com/sonlife/sonlife-giving/internal/donation"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func newDonation(reference, givingType, code, amount string) *donation.Donation {
	return &donation.Donation{
		Amount:     decimal.RequireFromString(amount),
		Currency:   currency.Code(code),
		GivingType: donation.GivingType(givingType),
		Frequency:  donation.FrequencyOneTime,
		Status:     donation.StatusCompleted,
		Email:      "jane@example.com",
		Name:       "Jane Doe",
		Reference:  reference,
	}
}

var _ = Describe("Service", func() {
	var (
		repo    *flakyRepo
		bus     *recordingBus
		service *donation.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		repo = newFlakyRepo()
		bus = &recordingBus{}
		service = donation.NewService(repo, bus, quietLogger)
		ctx = context.Background()
	})

	Describe("CreateDonation", func() {
		It("returns the stored record with its id and timestamp", func() {
			d, err := service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.ID).NotTo(BeEmpty())
			Expect(d.CreatedAt).NotTo(BeZero())
			Expect(d.Status).To(Equal(donation.StatusCompleted))
		})

		It("refuses records missing required fields before touching the store", func() {
			d := newDonation("", "tithe", "GHS", "100")
			_, err := service.CreateDonation(ctx, d)
			Expect(err).To(MatchError("Missing required donation fields"))
			Expect(repo.creates).To(BeZero())
		})

		It("refuses non-positive amounts", func() {
			_, err := service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "-1"))
			Expect(err).To(MatchError("Invalid donation amount"))
			Expect(repo.creates).To(BeZero())
		})

		It("reports a duplicate reference as its own category", func() {
			_, err := service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "missions", "GHS", "5"))
			Expect(errors.Is(err, apperrors.ErrDuplicateReference)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("already exists"))
		})

		DescribeTable("classifies store failures",
			func(storeErr error, expected *apperrors.AppError, message string) {
				repo.createErr = storeErr
				_, err := service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))
				Expect(errors.Is(err, expected)).To(BeTrue())
				appErr, _ := apperrors.IsAppError(err)
				Expect(appErr.Message).To(ContainSubstring(message))
			},
			Entry("unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, apperrors.ErrDuplicateReference, "already exists"),
			Entry("missing table", &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}, apperrors.ErrStoreMisconfigured, "donations table exists"),
			Entry("missing column", &pgconn.PgError{Code: "42703", Message: "column does not exist"}, apperrors.ErrStoreMisconfigured, "Invalid donation data structure"),
			Entry("foreign key", &pgconn.PgError{Code: "23503", Message: "fk"}, apperrors.ErrDataIntegrity, "Invalid reference to related data"),
		)

		It("wraps anything else with the store's message", func() {
			repo.createErr = errors.New("connection reset by peer")
			_, err := service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeInternal))
			Expect(appErr.Message).To(Equal("Failed to create donation record: connection reset by peer"))
		})
	})

	Describe("GetDonationByReference", func() {
		It("finds the exact reference", func() {
			_, _ = service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))
			d, err := service.GetDonationByReference(ctx, "SONLIFE-1-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Reference).To(Equal("SONLIFE-1-a"))
		})

		It("reports not found for unknown and empty references", func() {
			_, err := service.GetDonationByReference(ctx, "SONLIFE-1-zzz")
			Expect(errors.Is(err, apperrors.ErrDonationNotFound)).To(BeTrue())

			_, err = service.GetDonationByReference(ctx, " ")
			Expect(errors.Is(err, apperrors.ErrDonationNotFound)).To(BeTrue())
		})
	})

	Describe("UpdateDonationStatus", func() {
		It("changes the status only and publishes the change", func() {
			_, _ = service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))

			staffCtx := apperrors.ContextWithStaffEmail(ctx, "admin@sonlife.org")
			Expect(service.UpdateDonationStatus(staffCtx, "SONLIFE-1-a", donation.StatusFailed)).To(Succeed())

			d, _ := service.GetDonationByReference(ctx, "SONLIFE-1-a")
			Expect(d.Status).To(Equal(donation.StatusFailed))
			Expect(d.Amount.Equal(decimal.NewFromInt(100))).To(BeTrue())
			Expect(bus.types()).To(ContainElement("donation.status_changed"))
		})

		It("reports unknown references and statuses", func() {
			err := service.UpdateDonationStatus(ctx, "SONLIFE-1-zzz", donation.StatusFailed)
			Expect(errors.Is(err, apperrors.ErrDonationNotFound)).To(BeTrue())

			err = service.UpdateDonationStatus(ctx, "SONLIFE-1-zzz", donation.Status("refunded"))
			Expect(errors.Is(err, apperrors.ErrInvalidStatus)).To(BeTrue())
		})
	})

	Describe("GetDonationsByEmail", func() {
		It("lists a donor's gifts newest first", func() {
			_, _ = service.CreateDonation(ctx, newDonation("SONLIFE-1-a", "tithe", "GHS", "100"))
			time.Sleep(2 * time.Millisecond)
			_, _ = service.CreateDonation(ctx, newDonation("SONLIFE-2-b", "missions", "USD", "10"))

			list, err := service.GetDonationsByEmail(ctx, "jane@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Reference).To(Equal("SONLIFE-2-b"))
		})

		It("requires an email", func() {
			_, err := service.GetDonationsByEmail(ctx, "")
			Expect(err).To(HaveOccurred())
		})

		It("reports a missing table as a misconfigured store", func() {
			repo.listErr = &datamodel.StoreError{Code: "42P01", Message: "relation \"donations\" does not exist"}
			_, err := service.GetDonationsByEmail(ctx, "jane@example.com")
			Expect(errors.Is(err, apperrors.ErrStoreMisconfigured)).To(BeTrue())
		})
	})

	Describe("GetDonationsSince", func() {
		It("classifies store failures like a save does", func() {
			repo.listErr = &pgconn.PgError{Code: "42703", Message: "column does not exist"}
			_, err := service.GetDonationsSince(ctx, time.Now().Add(-time.Hour))
			Expect(errors.Is(err, apperrors.ErrStoreMisconfigured)).To(BeTrue())
		})

		It("wraps unknown failures as internal errors", func() {
			repo.listErr = errors.New("connection reset by peer")
			_, err := service.GetDonationsSince(ctx, time.Now().Add(-time.Hour))
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeInternal))
		})
	})

	Describe("GetDonationStats", func() {
		It("sums completed gifts and always lists every fund", func() {
			_, _ = service.CreateDonation(ctx, newDonation("r1", "tithe", "GHS", "100"))
			_, _ = service.CreateDonation(ctx, newDonation("r2", "tithe", "USD", "10"))
			_, _ = service.CreateDonation(ctx, newDonation("r3", "building", "GHS", "25.50"))
			failed := newDonation("r4", "missions", "GHS", "999")
			failed.Status = donation.StatusFailed
			_, _ = service.CreateDonation(ctx, failed)

			stats, err := service.GetDonationStats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.ByGivingType).To(HaveLen(4))
			Expect(stats.ByGivingType[donation.GivingTithe].Equal(decimal.NewFromInt(110))).To(BeTrue())
			Expect(stats.ByGivingType[donation.GivingMissions].IsZero()).To(BeTrue())
			Expect(stats.ByGivingType[donation.GivingOutreach].IsZero()).To(BeTrue())
			Expect(stats.ByCurrency[currency.GHS][donation.GivingTithe].Equal(decimal.NewFromInt(100))).To(BeTrue())
			Expect(stats.ByCurrency[currency.USD][donation.GivingTithe].Equal(decimal.NewFromInt(10))).To(BeTrue())
			Expect(stats.ByCurrency[currency.GHS][donation.GivingBuilding].Equal(decimal.RequireFromString("25.5"))).To(BeTrue())
		})

		It("reports a missing table as a misconfigured store", func() {
			repo.listErr = &datamodel.StoreError{Code: "42P01", Message: "relation \"donations\" does not exist"}
			_, err := service.GetDonationStats(ctx)
			Expect(errors.Is(err, apperrors.ErrStoreMisconfigured)).To(BeTrue())
		})
	})
})
