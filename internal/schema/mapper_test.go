package schema

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
	"github.com/amrit2244/tally-einvoice-bridge/pkg/xmltree"
)

func testSeller() SellerInfo {
	return SellerInfo{
		GSTIN:     "29AAAAA0000A1Z5",
		LegalName: "Acme Traders Pvt Ltd",
		Address1:  "12 Industrial Estate",
		Location:  "Bengaluru",
		PinCode:   560001,
		StateCode: "29",
	}
}

func rawVoucher(t *testing.T, inventory string) *xmltree.Element {
	t.Helper()
	doc := fmt.Sprintf(`<VOUCHER>
  <BASICBUYERADDRESS.LIST>
    <BASICBUYERADDRESS>45 MG Road</BASICBUYERADDRESS>
    <BASICBUYERADDRESS>Bengaluru 560002</BASICBUYERADDRESS>
  </BASICBUYERADDRESS.LIST>
  %s
</VOUCHER>`, inventory)
	el, err := xmltree.ParseString(doc)
	require.NoError(t, err)
	return el
}

func inventoryEntry(name, hsn, qty, rate, amount string) string {
	return fmt.Sprintf(`<ALLINVENTORYENTRIES.LIST>
  <STOCKITEMNAME>%s</STOCKITEMNAME>
  <GSTHSNCODE>%s</GSTHSNCODE>
  <BILLEDQTY>%s</BILLEDQTY>
  <RATE>%s</RATE>
  <AMOUNT>%s</AMOUNT>
</ALLINVENTORYENTRIES.LIST>`, name, hsn, qty, rate, amount)
}

func testRecord(t *testing.T, inventory string) *entity.InvoiceRecord {
	return &entity.InvoiceRecord{
		MasterID:      "101",
		VoucherNo:     "INV-001",
		Date:          "20250401",
		PartyName:     "Sharma Enterprises",
		PartyGSTIN:    "07BBBBB1111B1Z4",
		PlaceOfSupply: "Karnataka",
		TaxableAmount: 1000,
		CGSTAmount:    90,
		SGSTAmount:    90,
		TotalAmount:   1180,
		Status:        entity.StatusPending,
		RawData:       rawVoucher(t, inventory),
	}
}

func TestMapper_MapCompleteVoucher(t *testing.T) {
	m, err := NewMapper(testSeller(), zap.NewNop())
	require.NoError(t, err)

	rec := testRecord(t, inventoryEntry("Widget A", "8471", " 10 NOS", "100.00/NOS", "-1000.00"))
	doc, err := m.Map(rec)
	require.NoError(t, err)

	assert.Equal(t, "1.1", doc.Version)
	assert.Equal(t, "GST", doc.TranDtls.TaxSch)
	assert.Equal(t, "INV", doc.DocDtls.Typ)
	assert.Equal(t, "INV-001", doc.DocDtls.No)
	assert.Equal(t, "01/04/2025", doc.DocDtls.Dt)

	assert.Equal(t, "Acme Traders Pvt Ltd", doc.SellerDtls.LglNm)
	assert.Equal(t, "29", doc.SellerDtls.StateCd)

	assert.Equal(t, "07BBBBB1111B1Z4", doc.BuyerDtls.Gstin)
	assert.Equal(t, "29", doc.BuyerDtls.Pos) // Karnataka
	assert.Equal(t, "45 MG Road", doc.BuyerDtls.Addr1)
	assert.Equal(t, 560002, doc.BuyerDtls.Pin)

	require.Len(t, doc.ItemList, 1)
	item := doc.ItemList[0]
	assert.Equal(t, "1", item.SlNo)
	assert.Equal(t, "8471", item.HsnCd)
	assert.Equal(t, Amount(10), item.Qty)
	assert.Equal(t, "NOS", item.Unit)
	assert.Equal(t, Amount(1000), item.AssAmt)
	assert.Equal(t, Amount(90), item.CgstAmt)
	assert.Equal(t, Amount(90), item.SgstAmt)
	assert.Equal(t, Amount(1180), item.TotItemVal)
	assert.Equal(t, 18.0, item.GstRt) // derived from bucket totals

	assert.Equal(t, Amount(1180), doc.ValDtls.TotInvVal)
	assert.NoError(t, Validate(doc))
}

func TestMapper_TaxSplitAcrossLines(t *testing.T) {
	m, _ := NewMapper(testSeller(), zap.NewNop())

	rec := testRecord(t,
		inventoryEntry("Widget A", "8471", "3 NOS", "250.00/NOS", "-750.00")+
			inventoryEntry("Widget B", "8473", "1 NOS", "250.00/NOS", "-250.00"))
	doc, err := m.Map(rec)
	require.NoError(t, err)

	require.Len(t, doc.ItemList, 2)
	assert.Equal(t, Amount(67.5), doc.ItemList[0].CgstAmt) // 90 * 0.75
	assert.Equal(t, Amount(22.5), doc.ItemList[1].CgstAmt) // 90 * 0.25
}

func TestMapper_InvalidHSNFailsWithFieldName(t *testing.T) {
	m, _ := NewMapper(testSeller(), zap.NewNop())

	tests := []struct {
		name string
		hsn  string
	}{
		{"alphabetic", "ABCD"},
		{"too short", "84"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord(t, inventoryEntry("Widget", tt.hsn, "1 NOS", "100.00/NOS", "-100.00"))
			_, err := m.Map(rec)
			require.ErrorIs(t, err, ErrMapping)
			assert.Contains(t, err.Error(), "HsnCd")
		})
	}
}

func TestMapper_NoPlaceholdersForMissingData(t *testing.T) {
	m, _ := NewMapper(testSeller(), zap.NewNop())
	inv := inventoryEntry("Widget", "8471", "1 NOS", "100.00/NOS", "-100.00")

	t.Run("missing party GSTIN", func(t *testing.T) {
		rec := testRecord(t, inv)
		rec.PartyGSTIN = ""
		_, err := m.Map(rec)
		require.ErrorIs(t, err, ErrMapping)
		assert.Contains(t, err.Error(), "BuyerDtls.Gstin")
	})

	t.Run("unknown place of supply", func(t *testing.T) {
		rec := testRecord(t, inv)
		rec.PlaceOfSupply = "Atlantis"
		_, err := m.Map(rec)
		require.ErrorIs(t, err, ErrMapping)
		assert.Contains(t, err.Error(), "BuyerDtls.Pos")
	})

	t.Run("missing buyer address", func(t *testing.T) {
		rec := testRecord(t, inv)
		el, err := xmltree.ParseString("<VOUCHER>" + inv + "</VOUCHER>")
		require.NoError(t, err)
		rec.RawData = el
		_, mapErr := m.Map(rec)
		require.ErrorIs(t, mapErr, ErrMapping)
		assert.Contains(t, mapErr.Error(), "BuyerDtls.Addr1")
	})

	t.Run("no inventory entries", func(t *testing.T) {
		rec := testRecord(t, "")
		_, err := m.Map(rec)
		require.ErrorIs(t, err, ErrMapping)
		assert.Contains(t, err.Error(), "ItemList")
	})

	t.Run("bad voucher date", func(t *testing.T) {
		rec := testRecord(t, inv)
		rec.Date = "sometime"
		_, err := m.Map(rec)
		require.ErrorIs(t, err, ErrMapping)
		assert.Contains(t, err.Error(), "DocDtls.Dt")
	})
}

func TestMapper_RejectsIncompleteSellerAtConstruction(t *testing.T) {
	seller := testSeller()
	seller.Address1 = ""
	_, err := NewMapper(seller, zap.NewNop())
	require.ErrorIs(t, err, ErrMapping)
	assert.Contains(t, err.Error(), "SellerDtls.Addr1")
}

func TestAmount_RendersTwoDecimals(t *testing.T) {
	data, err := json.Marshal(struct {
		V Amount `json:"v"`
	}{V: Amount(1180)})
	require.NoError(t, err)
	assert.Equal(t, `{"v":1180.00}`, string(data))
}

func TestResolveStateCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Karnataka", "29", false},
		{"karnataka", "29", false},
		{"Delhi", "07", false},
		{"29", "29", false},
		{"7", "07", false},
		{"Atlantis", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ResolveStateCode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
