package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrValidation is returned when a mapped document fails the
// pre-submission schema check.
var ErrValidation = errors.New("invoice validation error")

var (
	gstinPattern   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	hsnPattern     = regexp.MustCompile(`^[0-9]{4,8}$`)
	docDatePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

// ValidGSTIN reports whether the value matches the GSTIN format
func ValidGSTIN(gstin string) bool {
	return gstinPattern.MatchString(gstin)
}

// ValidHSN reports whether the value is a plausible HSN code
func ValidHSN(hsn string) bool {
	return hsnPattern.MatchString(hsn)
}

// Validate checks mandatory fields and basic formats on a mapped
// document before it is encrypted and submitted. Catching these
// locally saves a round trip the IRP would reject anyway.
func Validate(doc *Document) error {
	var problems []string

	if doc.TranDtls.TaxSch != "GST" {
		problems = append(problems, "invalid TranDtls.TaxSch")
	}
	if doc.TranDtls.SupTyp == "" {
		problems = append(problems, "missing TranDtls.SupTyp")
	}

	switch doc.DocDtls.Typ {
	case "INV", "CRN", "DBN":
	default:
		problems = append(problems, "invalid DocDtls.Typ")
	}
	if doc.DocDtls.No == "" {
		problems = append(problems, "missing DocDtls.No")
	}
	if !docDatePattern.MatchString(doc.DocDtls.Dt) {
		problems = append(problems, "invalid DocDtls.Dt format (must be DD/MM/YYYY)")
	}

	problems = append(problems, validateParty("SellerDtls", &doc.SellerDtls)...)
	problems = append(problems, validateParty("BuyerDtls", &doc.BuyerDtls)...)
	if doc.BuyerDtls.Pos == "" {
		problems = append(problems, "missing BuyerDtls.Pos")
	}

	if len(doc.ItemList) == 0 {
		problems = append(problems, "ItemList cannot be empty")
	}
	for i, item := range doc.ItemList {
		prefix := fmt.Sprintf("Item %d: ", i+1)
		if item.SlNo == "" {
			problems = append(problems, prefix+"missing SlNo")
		}
		if item.IsService != "Y" && item.IsService != "N" {
			problems = append(problems, prefix+"invalid IsServc")
		}
		if !ValidHSN(item.HsnCd) {
			problems = append(problems, prefix+"invalid HsnCd")
		}
	}

	if doc.ValDtls.TotInvVal <= 0 {
		problems = append(problems, "missing ValDtls.TotInvVal")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func validateParty(block string, p *PartyDtls) []string {
	var problems []string
	if !ValidGSTIN(p.Gstin) {
		problems = append(problems, "invalid "+block+".Gstin")
	}
	if p.LglNm == "" {
		problems = append(problems, "missing "+block+".LglNm")
	}
	if p.Addr1 == "" {
		problems = append(problems, "missing "+block+".Addr1")
	}
	if p.Location == "" {
		problems = append(problems, "missing "+block+".Loc")
	}
	if p.Pin == 0 {
		problems = append(problems, "missing "+block+".Pin")
	}
	if p.StateCd == "" {
		problems = append(problems, "missing "+block+".Stcd")
	}
	return problems
}
