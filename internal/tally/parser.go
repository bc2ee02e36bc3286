package tally

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
	"github.com/amrit2244/tally-einvoice-bridge/pkg/xmltree"
)

// Parser converts raw voucher register XML into normalized invoice
// records. It never fails past this boundary: malformed documents
// degrade to an empty result and bad vouchers are skipped one by one.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a new voucher parser
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse extracts invoice records from a voucher register response.
// Vouchers with neither a voucher number nor a party name carry too
// little identity to act on and are dropped.
func (p *Parser) Parse(data []byte) []entity.InvoiceRecord {
	root, err := xmltree.Parse(bytes.NewReader(data))
	if err != nil {
		p.logger.Warn("Tally response is not parseable XML", zap.Error(err))
		return nil
	}

	body := root.Find("BODY", "DATA")
	if body == nil {
		p.logger.Warn("Tally response has no BODY/DATA section",
			zap.String("root", root.Name))
		return nil
	}

	var records []entity.InvoiceRecord
	for _, msg := range body.All("TALLYMESSAGE") {
		voucher := msg.First("VOUCHER")
		if voucher == nil {
			continue
		}

		rec, err := p.parseVoucher(voucher)
		if err != nil {
			p.logger.Warn("Skipping voucher", zap.Error(err))
			continue
		}
		if !rec.HasIdentity() {
			p.logger.Debug("Dropping voucher without number or party name",
				zap.String("master_id", rec.MasterID))
			continue
		}
		records = append(records, rec)
	}

	p.logger.Info("Parsed vouchers from tally response", zap.Int("count", len(records)))
	return records
}

// parseVoucher normalizes one VOUCHER element. Tax amounts are
// accumulated into CGST/SGST/IGST buckets by ledger-name substring; the
// party ledger line supplies the invoice total, and taxable value is
// what remains after removing the tax buckets.
func (p *Parser) parseVoucher(v *xmltree.Element) (entity.InvoiceRecord, error) {
	rec := entity.InvoiceRecord{
		MasterID:      v.ChildValue("MASTERID"),
		VoucherNo:     v.ChildValue("VOUCHERNUMBER"),
		Date:          v.ChildValue("DATE"),
		PartyName:     v.ChildValue("PARTYLEDGERNAME"),
		PartyGSTIN:    v.ChildValue("PARTYGSTIN"),
		PlaceOfSupply: v.ChildValue("PLACEOFSUPPLY"),
		Status:        entity.StatusPending,
		RawData:       v,
	}
	if rec.MasterID == "" {
		rec.MasterID = v.Attr["REMOTEID"]
	}
	if rec.PlaceOfSupply == "" {
		rec.PlaceOfSupply = v.ChildValue("STATENAME")
	}

	for _, entry := range v.All("ALLLEDGERENTRIES.LIST") {
		name := strings.ToUpper(entry.ChildValue("LEDGERNAME"))
		amount, err := parseAmount(entry.ChildValue("AMOUNT"))
		if err != nil {
			return rec, fmt.Errorf("voucher %s: ledger %q: %w", rec.VoucherNo, name, err)
		}

		switch {
		case strings.Contains(name, "CGST"):
			rec.CGSTAmount += amount
		case strings.Contains(name, "SGST"):
			rec.SGSTAmount += amount
		case strings.Contains(name, "IGST"):
			rec.IGSTAmount += amount
		case entry.ChildValue("ISPARTYLEDGER") == "Yes":
			rec.TotalAmount = amount
		}
	}

	rec.TaxableAmount = rec.TotalAmount - (rec.CGSTAmount + rec.SGSTAmount + rec.IGSTAmount)
	return rec, nil
}

// parseAmount reads a Tally ledger amount as a non-negative value.
// Tally signs credit entries; the buckets only care about magnitude.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, nil
	}
	s = strings.TrimPrefix(s, "-")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	return f, nil
}
