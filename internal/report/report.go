package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sonlife/sonlife-giving/internal/currency"
	"github.com/sonlife/sonlife-giving/internal/donation"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetDonations = "Donations"
	SheetTotals    = "Totals"
	SheetFunds     = "Church Totals"
)

var donationHeader = []interface{}{"Date", "Reference", "Name", "Email", "Fund", "Frequency", "Currency", "Amount", "Status"}

// Statement is a donor's giving history. Stats, when set, adds the church-wide
// per-fund totals on a third sheet.
type Statement struct {
	Email       string
	Donations   []*donation.Donation
	Stats       *donation.Stats
	GeneratedAt time.Time
}

// WriteStatement renders the statement as an xlsx workbook.
func WriteStatement(w io.Writer, st Statement) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetDonations); err != nil {
		return err
	}
	if err := writeDonations(f, st.Donations, bold, money); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetTotals); err != nil {
		return err
	}
	if err := writeTotals(f, st, bold, money); err != nil {
		return err
	}

	if st.Stats != nil {
		if _, err := f.NewSheet(SheetFunds); err != nil {
			return err
		}
		if err := writeFunds(f, st.Stats, bold, money); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeDonations(f *excelize.File, donations []*donation.Donation, bold, money int) error {
	if err := f.SetSheetRow(SheetDonations, "A1", &donationHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetDonations, "A1", "I1", bold); err != nil {
		return err
	}

	for i, d := range donations {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			d.CreatedAt.Format("2006-01-02"),
			d.Reference,
			d.Name,
			d.Email,
			d.GivingType.Label(),
			d.Frequency.Label(),
			string(d.Currency),
			d.Amount.InexactFloat64(),
			string(d.Status),
		}
		if err := f.SetSheetRow(SheetDonations, cell, &row); err != nil {
			return err
		}
	}
	if len(donations) > 0 {
		last := fmt.Sprintf("H%d", len(donations)+1)
		if err := f.SetCellStyle(SheetDonations, "H2", last, money); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetDonations, "B", "D", 28)
}

// writeTotals sums the donor's completed gifts per fund and currency.
func writeTotals(f *excelize.File, st Statement, bold, money int) error {
	type key struct {
		fund donation.GivingType
		code currency.Code
	}
	totals := map[key]decimal.Decimal{}
	for _, d := range st.Donations {
		if d.Status != donation.StatusCompleted {
			continue
		}
		k := key{d.GivingType, d.Currency}
		totals[k] = totals[k].Add(d.Amount)
	}
	keys := make([]key, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].code != keys[j].code {
			return keys[i].code < keys[j].code
		}
		return keys[i].fund < keys[j].fund
	})

	generated := st.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	rows := [][]interface{}{
		{"Donor", st.Email},
		{"Generated", generated.Format("January 2, 2006")},
		{"Fund", "Currency", "Total"},
	}
	for _, k := range keys {
		rows = append(rows, []interface{}{k.fund.Label(), string(k.code), totals[k].InexactFloat64()})
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetTotals, cell, &rows[i]); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetTotals, "A3", "C3", bold); err != nil {
		return err
	}
	if len(keys) > 0 {
		return f.SetCellStyle(SheetTotals, "C4", fmt.Sprintf("C%d", len(rows)), money)
	}
	return nil
}

func writeFunds(f *excelize.File, stats *donation.Stats, bold, money int) error {
	header := []interface{}{"Fund"}
	codes := make([]currency.Code, 0, len(stats.ByCurrency))
	for code := range stats.ByCurrency {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, code := range codes {
		header = append(header, string(code))
	}
	header = append(header, "All currencies")
	if err := f.SetSheetRow(SheetFunds, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetFunds, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i, fund := range donation.GivingTypes {
		row := []interface{}{fund.Label()}
		for _, code := range codes {
			row = append(row, stats.ByCurrency[code][fund].InexactFloat64())
		}
		row = append(row, stats.ByGivingType[fund].InexactFloat64())
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetFunds, cell, &row); err != nil {
			return err
		}
	}
	return f.SetCellStyle(SheetFunds, "B2", fmt.Sprintf("%s%d", lastCol, len(donation.GivingTypes)+1), money)
}
