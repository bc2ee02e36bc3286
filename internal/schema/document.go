// Package schema maps normalized invoice records into the IRP e-invoice
// JSON schema (v1.1) and pre-validates documents before submission.
package schema

import "strconv"

// SchemaVersion is the IRP invoice schema version tag
const SchemaVersion = "1.1"

// Amount is a fixed-point monetary value rendered with exactly two
// decimals in JSON, as the IRP schema requires.
type Amount float64

// MarshalJSON renders the amount with two decimal places
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', 2, 64)), nil
}

// Document is the top-level IRP invoice payload
type Document struct {
	Version    string    `json:"Version"`
	TranDtls   TranDtls  `json:"TranDtls"`
	DocDtls    DocDtls   `json:"DocDtls"`
	SellerDtls PartyDtls `json:"SellerDtls"`
	BuyerDtls  PartyDtls `json:"BuyerDtls"`
	ItemList   []Item    `json:"ItemList"`
	ValDtls    ValDtls   `json:"ValDtls"`
}

// TranDtls holds transaction-level details
type TranDtls struct {
	TaxSch string `json:"TaxSch"`
	SupTyp string `json:"SupTyp"`
}

// DocDtls identifies the source document
type DocDtls struct {
	Typ string `json:"Typ"`
	No  string `json:"No"`
	Dt  string `json:"Dt"` // DD/MM/YYYY
}

// PartyDtls describes the seller or buyer block. Pos is only set on
// the buyer (place of supply state code).
type PartyDtls struct {
	Gstin    string `json:"Gstin"`
	LglNm    string `json:"LglNm"`
	TrdNm    string `json:"TrdNm,omitempty"`
	Pos      string `json:"Pos,omitempty"`
	Addr1    string `json:"Addr1"`
	Addr2    string `json:"Addr2,omitempty"`
	Location string `json:"Loc"`
	Pin      int    `json:"Pin"`
	StateCd  string `json:"Stcd"`
	Phone    string `json:"Ph,omitempty"`
	Email    string `json:"Em,omitempty"`
}

// Item is one invoice line
type Item struct {
	SlNo       string  `json:"SlNo"`
	PrdDesc    string  `json:"PrdDesc,omitempty"`
	IsService  string  `json:"IsServc"`
	HsnCd      string  `json:"HsnCd"`
	Qty        Amount  `json:"Qty,omitempty"`
	Unit       string  `json:"Unit,omitempty"`
	UnitPrice  Amount  `json:"UnitPrice"`
	TotAmt     Amount  `json:"TotAmt"`
	Discount   Amount  `json:"Discount"`
	PreTaxVal  Amount  `json:"PreTaxVal"`
	AssAmt     Amount  `json:"AssAmt"`
	GstRt      float64 `json:"GstRt"`
	IgstAmt    Amount  `json:"IgstAmt"`
	CgstAmt    Amount  `json:"CgstAmt"`
	SgstAmt    Amount  `json:"SgstAmt"`
	TotItemVal Amount  `json:"TotItemVal"`
}

// ValDtls holds document-level value totals
type ValDtls struct {
	AssVal    Amount `json:"AssVal"`
	CgstVal   Amount `json:"CgstVal"`
	SgstVal   Amount `json:"SgstVal"`
	IgstVal   Amount `json:"IgstVal"`
	CesVal    Amount `json:"CesVal"`
	StCesVal  Amount `json:"StCesVal"`
	RndOffAmt Amount `json:"RndOffAmt"`
	TotInvVal Amount `json:"TotInvVal"`
}
