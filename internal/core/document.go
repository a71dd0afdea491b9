package core

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDocType is the document type used for goods introduced into circulation.
const DefaultDocType = "LP_INTRODUCE_GOODS"

// DateLayout is the wire format for document dates.
const DateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Empty input yields the zero date.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected %s", value, DateLayout)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON renders zero dates as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*d = Date{}
		return nil
	}
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return fmt.Errorf("invalid date %s: expected quoted %s", raw, DateLayout)
	}
	parsed, err := ParseDate(raw[1 : len(raw)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(DateLayout), nil
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Description identifies the participant filing the document.
type Description struct {
	ParticipantINN string `json:"participant_inn" yaml:"participant_inn"`
}

// Product is one marked item listed in a document.
type Product struct {
	CertificateDocument       string `json:"certificate_document" yaml:"certificate_document"`
	CertificateDocumentDate   Date   `json:"certificate_document_date" yaml:"certificate_document_date"`
	CertificateDocumentNumber string `json:"certificate_document_number" yaml:"certificate_document_number"`
	OwnerINN                  string `json:"owner_inn" yaml:"owner_inn"`
	ProducerINN               string `json:"producer_inn" yaml:"producer_inn"`
	ProductionDate            Date   `json:"production_date" yaml:"production_date"`
	TNVEDCode                 string `json:"tnved_code" yaml:"tnved_code"`
	UITCode                   string `json:"uit_code" yaml:"uit_code"`
	UITUCode                  string `json:"uitu_code,omitempty" yaml:"uitu_code,omitempty"`
}

// Document is an introduction-of-goods submission. Field order matches the
// serialized form.
type Document struct {
	Description    Description `json:"description" yaml:"description"`
	DocID          string      `json:"doc_id" yaml:"doc_id"`
	DocStatus      string      `json:"doc_status" yaml:"doc_status"`
	DocType        string      `json:"doc_type" yaml:"doc_type"`
	ImportRequest  bool        `json:"import_request" yaml:"import_request"`
	OwnerINN       string      `json:"owner_inn" yaml:"owner_inn"`
	ParticipantINN string      `json:"participant_inn" yaml:"participant_inn"`
	ProducerINN    string      `json:"producer_inn" yaml:"producer_inn"`
	ProductionDate Date        `json:"production_date" yaml:"production_date"`
	ProductionType string      `json:"production_type" yaml:"production_type"`
	Products       []Product   `json:"products,omitempty" yaml:"products,omitempty"`
	RegDate        Date        `json:"reg_date" yaml:"reg_date"`
	RegNumber      string      `json:"reg_number" yaml:"reg_number"`
}

// NewDocument returns a document with the default type, import flag, and
// today's production and registration dates.
func NewDocument(now time.Time) *Document {
	today := NewDate(now)
	return &Document{
		DocType:        DefaultDocType,
		ImportRequest:  true,
		ProductionDate: today,
		RegDate:        today,
	}
}

// ApplyDefaults fills unset fields the way NewDocument would.
func (d *Document) ApplyDefaults(now time.Time) {
	if d == nil {
		return
	}
	if strings.TrimSpace(d.DocType) == "" {
		d.DocType = DefaultDocType
	}
	today := NewDate(now)
	if d.ProductionDate.IsZero() {
		d.ProductionDate = today
	}
	if d.RegDate.IsZero() {
		d.RegDate = today
	}
}
