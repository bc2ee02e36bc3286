package schema

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
	"github.com/amrit2244/tally-einvoice-bridge/pkg/xmltree"
)

// ErrMapping is returned when a mandatory schema field cannot be
// resolved from the voucher or configuration. The mapper fails fast
// with the field name instead of emitting placeholder values.
var ErrMapping = errors.New("invoice mapping error")

func fieldErr(field string, detail string) error {
	if detail != "" {
		return fmt.Errorf("%w: cannot resolve %s: %s", ErrMapping, field, detail)
	}
	return fmt.Errorf("%w: cannot resolve %s", ErrMapping, field)
}

// SellerInfo is the static registered-business block configured once
// per installation.
type SellerInfo struct {
	GSTIN     string
	LegalName string
	TradeName string
	Address1  string
	Address2  string
	Location  string
	PinCode   int
	StateCode string
	Phone     string
	Email     string
}

// Mapper converts invoice records into IRP schema documents
type Mapper struct {
	seller PartyDtls
	logger *zap.Logger
}

// NewMapper creates a mapper with a pre-built seller block. Seller
// completeness is checked here so a misconfigured installation fails
// at startup, not on the first submission.
func NewMapper(seller SellerInfo, logger *zap.Logger) (*Mapper, error) {
	switch {
	case seller.GSTIN == "":
		return nil, fieldErr("SellerDtls.Gstin", "not configured")
	case seller.LegalName == "":
		return nil, fieldErr("SellerDtls.LglNm", "not configured")
	case seller.Address1 == "":
		return nil, fieldErr("SellerDtls.Addr1", "not configured")
	case seller.Location == "":
		return nil, fieldErr("SellerDtls.Loc", "not configured")
	case seller.PinCode == 0:
		return nil, fieldErr("SellerDtls.Pin", "not configured")
	case seller.StateCode == "":
		return nil, fieldErr("SellerDtls.Stcd", "not configured")
	}

	return &Mapper{
		seller: PartyDtls{
			Gstin:    seller.GSTIN,
			LglNm:    seller.LegalName,
			TrdNm:    seller.TradeName,
			Addr1:    seller.Address1,
			Addr2:    seller.Address2,
			Location: seller.Location,
			Pin:      seller.PinCode,
			StateCd:  seller.StateCode,
			Phone:    seller.Phone,
			Email:    seller.Email,
		},
		logger: logger,
	}, nil
}

// Map builds the IRP document for one invoice record
func (m *Mapper) Map(rec *entity.InvoiceRecord) (*Document, error) {
	if rec.VoucherNo == "" {
		return nil, fieldErr("DocDtls.No", "voucher has no number")
	}

	docDate, err := formatDocDate(rec.Date)
	if err != nil {
		return nil, fieldErr("DocDtls.Dt", err.Error())
	}

	buyer, err := m.buildBuyer(rec)
	if err != nil {
		return nil, err
	}

	items, err := m.buildItems(rec)
	if err != nil {
		return nil, err
	}

	totalTax := rec.CGSTAmount + rec.SGSTAmount + rec.IGSTAmount
	roundOff := round2(rec.TotalAmount - (rec.TaxableAmount + totalTax))

	doc := &Document{
		Version: SchemaVersion,
		TranDtls: TranDtls{
			TaxSch: "GST",
			SupTyp: "B2B",
		},
		DocDtls: DocDtls{
			Typ: "INV",
			No:  rec.VoucherNo,
			Dt:  docDate,
		},
		SellerDtls: m.seller,
		BuyerDtls:  buyer,
		ItemList:   items,
		ValDtls: ValDtls{
			AssVal:    Amount(rec.TaxableAmount),
			CgstVal:   Amount(rec.CGSTAmount),
			SgstVal:   Amount(rec.SGSTAmount),
			IgstVal:   Amount(rec.IGSTAmount),
			RndOffAmt: Amount(roundOff),
			TotInvVal: Amount(rec.TotalAmount),
		},
	}

	m.logger.Debug("Mapped invoice to IRP schema",
		zap.String("voucher_no", rec.VoucherNo),
		zap.Int("items", len(items)))

	return doc, nil
}

// buildBuyer resolves the buyer block from the record and its raw
// voucher data.
func (m *Mapper) buildBuyer(rec *entity.InvoiceRecord) (PartyDtls, error) {
	if rec.PartyGSTIN == "" {
		return PartyDtls{}, fieldErr("BuyerDtls.Gstin", "voucher has no party GSTIN")
	}
	if rec.PartyName == "" {
		return PartyDtls{}, fieldErr("BuyerDtls.LglNm", "voucher has no party name")
	}

	pos, err := ResolveStateCode(rec.PlaceOfSupply)
	if err != nil {
		return PartyDtls{}, fieldErr("BuyerDtls.Pos", err.Error())
	}

	lines := addressLines(rec.RawData)
	if len(lines) == 0 {
		return PartyDtls{}, fieldErr("BuyerDtls.Addr1", "voucher carries no buyer address")
	}

	pin, ok := findPinCode(lines)
	if !ok {
		return PartyDtls{}, fieldErr("BuyerDtls.Pin", "no PIN code in buyer address")
	}

	loc := rec.PlaceOfSupply
	if _, convErr := strconv.Atoi(loc); convErr == nil || loc == "" {
		loc = lines[len(lines)-1]
	}

	buyer := PartyDtls{
		Gstin:    rec.PartyGSTIN,
		LglNm:    rec.PartyName,
		Pos:      pos,
		Addr1:    lines[0],
		Location: loc,
		Pin:      pin,
		StateCd:  pos,
	}
	if len(lines) > 1 {
		buyer.Addr2 = strings.Join(lines[1:], ", ")
	}
	return buyer, nil
}

// buildItems resolves invoice lines from the voucher's inventory
// entries and distributes the voucher's tax buckets across lines in
// proportion to their assessable value.
func (m *Mapper) buildItems(rec *entity.InvoiceRecord) ([]Item, error) {
	entries := rec.RawData.All("ALLINVENTORYENTRIES.LIST")
	if len(entries) == 0 {
		return nil, fieldErr("ItemList", "voucher has no inventory entries")
	}

	type line struct {
		desc string
		hsn  string
		qty  float64
		unit string
		rate float64
		ass  float64
		gst  float64
	}

	lines := make([]line, 0, len(entries))
	var totalAss float64
	for i, e := range entries {
		l := line{
			desc: e.ChildValue("STOCKITEMNAME"),
			hsn:  e.ChildValue("GSTHSNCODE"),
		}
		if l.hsn == "" {
			l.hsn = e.ChildValue("HSNCODE")
		}
		if !hsnPattern.MatchString(l.hsn) {
			return nil, fieldErr(fmt.Sprintf("ItemList[%d].HsnCd", i+1),
				fmt.Sprintf("item %q has HSN %q", l.desc, l.hsn))
		}

		amt, err := absAmount(e.ChildValue("AMOUNT"))
		if err != nil {
			return nil, fieldErr(fmt.Sprintf("ItemList[%d].AssAmt", i+1), err.Error())
		}
		l.ass = amt

		l.qty, l.unit = parseQuantity(e.ChildValue("BILLEDQTY"), e.ChildValue("ACTUALQTY"))
		l.rate = parseRate(e.ChildValue("RATE"))
		if l.rate == 0 && l.qty > 0 {
			l.rate = round2(l.ass / l.qty)
		}
		l.gst = parseGSTRate(e.ChildValue("GSTRATE"))

		totalAss += l.ass
		lines = append(lines, l)
	}

	totalTax := rec.CGSTAmount + rec.SGSTAmount + rec.IGSTAmount
	fallbackRate := 0.0
	if rec.TaxableAmount > 0 {
		fallbackRate = round2(totalTax / rec.TaxableAmount * 100)
	}

	items := make([]Item, 0, len(lines))
	for i, l := range lines {
		share := 0.0
		if totalAss > 0 {
			share = l.ass / totalAss
		}
		cgst := round2(rec.CGSTAmount * share)
		sgst := round2(rec.SGSTAmount * share)
		igst := round2(rec.IGSTAmount * share)

		gstRt := l.gst
		if gstRt == 0 {
			gstRt = fallbackRate
		}

		items = append(items, Item{
			SlNo:       strconv.Itoa(i + 1),
			PrdDesc:    l.desc,
			IsService:  "N",
			HsnCd:      l.hsn,
			Qty:        Amount(l.qty),
			Unit:       l.unit,
			UnitPrice:  Amount(l.rate),
			TotAmt:     Amount(l.ass),
			PreTaxVal:  Amount(l.ass),
			AssAmt:     Amount(l.ass),
			GstRt:      gstRt,
			IgstAmt:    Amount(igst),
			CgstAmt:    Amount(cgst),
			SgstAmt:    Amount(sgst),
			TotItemVal: Amount(round2(l.ass + cgst + sgst + igst)),
		})
	}
	return items, nil
}

// formatDocDate renders a Tally voucher date as DD/MM/YYYY
func formatDocDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"20060102", "02-01-2006", "2-Jan-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006"), nil
		}
	}
	return "", fmt.Errorf("unrecognized voucher date %q", s)
}

var pinPattern = regexp.MustCompile(`\b[1-9][0-9]{5}\b`)

// addressLines collects the buyer address lines Tally attaches to an
// exploded voucher. Newer exports use BASICBUYERADDRESS.LIST, older
// ones a bare ADDRESS.LIST on the party ledger entry.
func addressLines(raw *xmltree.Element) []string {
	if raw == nil {
		return nil
	}
	var out []string
	if list := raw.First("BASICBUYERADDRESS.LIST"); list != nil {
		for _, a := range list.All("BASICBUYERADDRESS") {
			if v := a.Value(); v != "" {
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		if list := raw.First("ADDRESS.LIST"); list != nil {
			for _, a := range list.All("ADDRESS") {
				if v := a.Value(); v != "" {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

// findPinCode scans address lines for a six-digit Indian PIN code
func findPinCode(lines []string) (int, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if match := pinPattern.FindString(lines[i]); match != "" {
			pin, _ := strconv.Atoi(match)
			return pin, true
		}
	}
	return 0, false
}

func absAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(strings.TrimPrefix(s, "-"), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	return f, nil
}

// parseQuantity reads Tally's "10 NOS" style quantity fields
func parseQuantity(billed, actual string) (float64, string) {
	for _, s := range []string{billed, actual} {
		fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(s), "-"))
		if len(fields) == 0 {
			continue
		}
		qty, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		unit := ""
		if len(fields) > 1 {
			unit = strings.ToUpper(fields[1])
		}
		return qty, unit
	}
	return 0, ""
}

// parseRate reads Tally's "500.00/NOS" style rate field
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return math.Abs(f)
}

// parseGSTRate reads a "18 %"-style GST rate field
func parseGSTRate(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
