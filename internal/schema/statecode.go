package schema

import (
	"fmt"
	"strings"
)

// GST state codes keyed by lower-cased state name. Tally exports the
// place of supply as a state name; the IRP wants the numeric code.
var stateCodes = map[string]string{
	"jammu and kashmir": "01",
	"jammu & kashmir":   "01",
	"himachal pradesh":  "02",
	"punjab":            "03",
	"chandigarh":        "04",
	"uttarakhand":       "05",
	"haryana":           "06",
	"delhi":             "07",
	"rajasthan":         "08",
	"uttar pradesh":     "09",
	"bihar":             "10",
	"sikkim":            "11",
	"arunachal pradesh": "12",
	"nagaland":          "13",
	"manipur":           "14",
	"mizoram":           "15",
	"tripura":           "16",
	"meghalaya":         "17",
	"assam":             "18",
	"west bengal":       "19",
	"jharkhand":         "20",
	"odisha":            "21",
	"chattisgarh":       "22",
	"chhattisgarh":      "22",
	"madhya pradesh":    "23",
	"gujarat":           "24",
	"daman and diu":     "25",
	"dadra and nagar haveli and daman and diu": "26",
	"maharashtra":                 "27",
	"andhra pradesh":              "28",
	"karnataka":                   "29",
	"goa":                         "30",
	"lakshadweep":                 "31",
	"kerala":                      "32",
	"tamil nadu":                  "33",
	"puducherry":                  "34",
	"andaman and nicobar islands": "35",
	"telangana":                   "36",
	"ladakh":                      "38",
	"other country":               "96",
}

// ResolveStateCode converts a Tally place-of-supply value to a GST
// state code. Accepts either a state name or an already numeric code.
func ResolveStateCode(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("empty place of supply")
	}

	if len(v) <= 2 && strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
		if len(v) == 1 {
			v = "0" + v
		}
		return v, nil
	}

	if code, ok := stateCodes[strings.ToLower(v)]; ok {
		return code, nil
	}
	return "", fmt.Errorf("unknown state %q", value)
}
