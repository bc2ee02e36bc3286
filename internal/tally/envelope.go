package tally

import (
	"encoding/xml"
	"fmt"
	"time"
)

// TallyDate renders a time in Tally's native YYYYMMDD form
func TallyDate(t time.Time) string {
	return t.Format("20060102")
}

// ParseOperatorDate parses the DD-MM-YYYY form the operator types
func ParseOperatorDate(s string) (time.Time, error) {
	t, err := time.Parse("02-01-2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected DD-MM-YYYY: %w", s, err)
	}
	return t, nil
}

type envelopeHeader struct {
	Version      int    `xml:"VERSION"`
	TallyRequest string `xml:"TALLYREQUEST"`
	Type         string `xml:"TYPE"`
	ID           string `xml:"ID"`
}

type staticVariables struct {
	FromDate        string `xml:"SVFROMDATE,omitempty"`
	ToDate          string `xml:"SVTODATE,omitempty"`
	VoucherTypeName string `xml:"VOUCHERTYPENAME,omitempty"`
	ExplodeFlag     string `xml:"EXPLODEFLAG,omitempty"`
	ExportFormat    string `xml:"SVEXPORTFORMAT,omitempty"`
	ImportDups      string `xml:"IMPORTDUPS,omitempty"`
}

type requestDesc struct {
	StaticVariables staticVariables `xml:"STATICVARIABLES"`
}

type exportBody struct {
	Desc requestDesc `xml:"DESC"`
}

type exportEnvelope struct {
	XMLName xml.Name       `xml:"ENVELOPE"`
	Header  envelopeHeader `xml:"HEADER"`
	Body    *exportBody    `xml:"BODY,omitempty"`
}

func marshalEnvelope(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tally envelope: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// buildProbeEnvelope builds the cheap connectivity check request
func buildProbeEnvelope() ([]byte, error) {
	return marshalEnvelope(exportEnvelope{
		Header: envelopeHeader{
			Version:      1,
			TallyRequest: "Export",
			Type:         "Data",
			ID:           "List of Companies",
		},
	})
}

// buildExportEnvelope builds the Sales voucher register export request
func buildExportEnvelope(from, to time.Time) ([]byte, error) {
	return marshalEnvelope(exportEnvelope{
		Header: envelopeHeader{
			Version:      1,
			TallyRequest: "Export",
			Type:         "Data",
			ID:           "Voucher Register",
		},
		Body: &exportBody{
			Desc: requestDesc{
				StaticVariables: staticVariables{
					FromDate:        TallyDate(from),
					ToDate:          TallyDate(to),
					VoucherTypeName: "Sales",
					ExplodeFlag:     "Yes",
				},
			},
		},
	})
}

// Import (alter voucher) envelope

type einvoiceDetails struct {
	IRN      string `xml:"IRN"`
	AckNo    string `xml:"ACKNO"`
	AckDate  string `xml:"ACKDT"`
	Status   string `xml:"STATUS"`
	ErrorMsg string `xml:"ERRORMSG"`
}

type importLedgerEntries struct {
	EInvoiceDetails einvoiceDetails `xml:"EINVOICEDETAILS.LIST"`
}

type importVoucher struct {
	RemoteID      string              `xml:"REMOTEID,attr"`
	VchType       string              `xml:"VCHTYPE,attr"`
	Action        string              `xml:"ACTION,attr"`
	MasterID      string              `xml:"MASTERID"`
	AlterID       string              `xml:"ALTERID"`
	LedgerEntries importLedgerEntries `xml:"ALLLEDGERENTRIES.LIST"`
	UpdatedBy     string              `xml:"UPDATEDBY"`
	UpdateDate    string              `xml:"UPDATEDATE"`
}

type importMessage struct {
	Voucher importVoucher `xml:"VOUCHER"`
}

type importBody struct {
	Desc requestDesc   `xml:"DESC"`
	Data importMessage `xml:"DATA>TALLYMESSAGE"`
}

type importEnvelope struct {
	XMLName xml.Name       `xml:"ENVELOPE"`
	Header  envelopeHeader `xml:"HEADER"`
	Body    importBody     `xml:"BODY"`
}

func buildImportEnvelope(v importVoucher) ([]byte, error) {
	return marshalEnvelope(importEnvelope{
		Header: envelopeHeader{
			Version:      1,
			TallyRequest: "Import",
			Type:         "Data",
			ID:           "Vouchers",
		},
		Body: importBody{
			Desc: requestDesc{
				StaticVariables: staticVariables{
					ExportFormat: "$$SysName:XML",
					ImportDups:   "@@DUPIGNORE",
				},
			},
			Data: importMessage{Voucher: v},
		},
	})
}
