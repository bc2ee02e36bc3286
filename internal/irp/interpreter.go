package irp

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

const (
	maxExcerptLen     = 500
	unparseablePrefix = "Unrecognized IRP response: "
)

// Interpreter classifies raw IRP response bodies into submission
// results. Classification rules apply in a fixed order and the first
// match wins; anything that matches nothing becomes a failure carrying
// an excerpt of the body for diagnosis.
type Interpreter struct {
	logger *zap.Logger
}

// NewInterpreter creates a response interpreter
func NewInterpreter(logger *zap.Logger) *Interpreter {
	return &Interpreter{logger: logger}
}

func newInterpreter(logger *zap.Logger) *Interpreter {
	return NewInterpreter(logger)
}

// codeField holds an IRP error code. Gateways emit these as JSON
// numbers or as strings ("2150" vs "NET_ERROR"), so it accepts both.
type codeField string

func (c *codeField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = codeField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = codeField(n.String())
	return nil
}

func (c codeField) String() string { return string(c) }

// errorDetail accepts both naming conventions seen in IRP error lists
type errorDetail struct {
	ErrorCode    codeField `json:"ErrorCode"`
	ErrorCd      codeField `json:"error_cd"`
	ErrorMessage string    `json:"ErrorMessage"`
	ErrorDesc    string    `json:"error_desc"`
}

func (d errorDetail) code() string {
	if d.ErrorCode != "" {
		return d.ErrorCode.String()
	}
	return d.ErrorCd.String()
}

func (d errorDetail) message() string {
	if d.ErrorMessage != "" {
		return d.ErrorMessage
	}
	return d.ErrorDesc
}

type successData struct {
	Irn          string      `json:"Irn"`
	AckNo        json.Number `json:"AckNo"`
	AckDt        string      `json:"AckDt"`
	SignedQRCode string      `json:"SignedQRCode"`
}

type irpResponse struct {
	Status       json.Number     `json:"Status"`
	Data         json.RawMessage `json:"Data"`
	ErrorDetails json.RawMessage `json:"ErrorDetails"`
	Error        json.RawMessage `json:"error"`
}

// Interpret classifies one response body. It never returns an error;
// unparseable bodies classify as failures.
func (i *Interpreter) Interpret(body string) entity.SubmissionResult {
	var resp irpResponse
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return failureExcerpt(body)
	}

	// Rule 1: explicit success with an IRN in the payload
	if resp.Status.String() == "1" && len(resp.Data) > 0 {
		var data successData
		ddec := json.NewDecoder(strings.NewReader(string(resp.Data)))
		ddec.UseNumber()
		if err := ddec.Decode(&data); err == nil && data.Irn != "" {
			return entity.SubmissionResult{
				Status:  entity.StatusGenerated,
				IRN:     data.Irn,
				AckNo:   data.AckNo.String(),
				AckDate: data.AckDt,
				QRCode:  data.SignedQRCode,
			}
		}
	}

	// Rule 2: explicit failure with a detail list
	if resp.Status.String() == "0" && len(resp.ErrorDetails) > 0 {
		if msg, ok := joinErrorDetails(resp.ErrorDetails); ok {
			return entity.SubmissionResult{Status: entity.StatusFailed, ErrorMsg: msg}
		}
	}

	// Rule 3: top-level error object, seen on gateway-level rejections
	if len(resp.Error) > 0 {
		if msg, ok := topLevelError(resp.Error); ok {
			return entity.SubmissionResult{Status: entity.StatusFailed, ErrorMsg: msg}
		}
	}

	i.logger.Warn("IRP response matched no known shape", zap.Int("body_len", len(body)))
	return failureExcerpt(body)
}

func joinErrorDetails(raw json.RawMessage) (string, bool) {
	var details []errorDetail
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&details); err != nil || len(details) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, fmt.Sprintf("Code %s: %s", d.code(), d.message()))
	}
	return strings.Join(parts, "; "), true
}

func topLevelError(raw json.RawMessage) (string, bool) {
	if string(raw) == "null" {
		return "", false
	}
	var obj struct {
		ErrorCd codeField `json:"error_cd"`
		Message string    `json:"message"`
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return "", false
	}
	// An error object with no recognizable fields still marks a
	// rejection, so it classifies with placeholder code and message.
	code := obj.ErrorCd.String()
	if code == "" {
		code = "UNKNOWN"
	}
	msg := obj.Message
	if msg == "" {
		msg = "Unknown API error."
	}
	return fmt.Sprintf("Code %s: %s", code, msg), true
}

func failureExcerpt(body string) entity.SubmissionResult {
	excerpt := body
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen]
	}
	return entity.SubmissionResult{
		Status:   entity.StatusFailed,
		ErrorMsg: unparseablePrefix + excerpt,
	}
}
