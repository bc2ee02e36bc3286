package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	return &Document{
		Version:  SchemaVersion,
		TranDtls: TranDtls{TaxSch: "GST", SupTyp: "B2B"},
		DocDtls:  DocDtls{Typ: "INV", No: "INV-001", Dt: "01/04/2025"},
		SellerDtls: PartyDtls{
			Gstin: "29AAAAA0000A1Z5", LglNm: "Acme", Addr1: "12 Estate",
			Location: "Bengaluru", Pin: 560001, StateCd: "29",
		},
		BuyerDtls: PartyDtls{
			Gstin: "07BBBBB1111B1Z4", LglNm: "Sharma", Pos: "07", Addr1: "45 MG Road",
			Location: "Delhi", Pin: 110001, StateCd: "07",
		},
		ItemList: []Item{{SlNo: "1", IsService: "N", HsnCd: "8471", AssAmt: 1000, TotItemVal: 1180}},
		ValDtls:  ValDtls{AssVal: 1000, CgstVal: 90, SgstVal: 90, TotInvVal: 1180},
	}
}

func TestValidate_AcceptsWellFormedDocument(t *testing.T) {
	assert.NoError(t, Validate(validDocument()))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	doc := validDocument()
	doc.DocDtls.Dt = "2025-04-01"
	doc.BuyerDtls.Gstin = "garbage"
	doc.ItemList[0].HsnCd = "xx"

	err := Validate(doc)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "DocDtls.Dt")
	assert.Contains(t, err.Error(), "BuyerDtls.Gstin")
	assert.Contains(t, err.Error(), "HsnCd")
}

func TestValidate_EmptyItemList(t *testing.T) {
	doc := validDocument()
	doc.ItemList = nil
	err := Validate(doc)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "ItemList cannot be empty")
}

func TestValidGSTIN(t *testing.T) {
	tests := []struct {
		gstin string
		valid bool
	}{
		{"29AAAAA0000A1Z5", true},
		{"07BBBBB1111B1Z4", true},
		{"29AAAAA0000A1Y5", false}, // 14th char must be Z
		{"29aaaaa0000a1z5", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.gstin, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidGSTIN(tt.gstin))
		})
	}
}

func TestValidHSN(t *testing.T) {
	tests := []struct {
		hsn   string
		valid bool
	}{
		{"8471", true},
		{"84715000", true},
		{"847", false},
		{"847150001", false},
		{"84AB", false},
	}

	for _, tt := range tests {
		t.Run(tt.hsn, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidHSN(tt.hsn))
		})
	}
}
