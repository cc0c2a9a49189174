package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CustomFieldType enumerates the input kinds a tenant can define.
type CustomFieldType string

const (
	FieldText     CustomFieldType = "text"
	FieldTextarea CustomFieldType = "textarea"
	FieldNumber   CustomFieldType = "number"
	FieldEmail    CustomFieldType = "email"
	FieldTel      CustomFieldType = "tel"
	FieldDate     CustomFieldType = "date"
	FieldSelect   CustomFieldType = "select"
	FieldCheckbox CustomFieldType = "checkbox"
	FieldRadio    CustomFieldType = "radio"
	FieldFile     CustomFieldType = "file"
)

// Valid reports whether t is a known field type.
func (t CustomFieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldNumber, FieldEmail, FieldTel, FieldDate,
		FieldSelect, FieldCheckbox, FieldRadio, FieldFile:
		return true
	}
	return false
}

// CustomField is a tenant-defined form field.
type CustomField struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenantId"`
	AdmissionPathID *string         `db:"admission_path_id" json:"admissionPathId,omitempty"`
	Key             string          `db:"key" json:"key"`
	Label           string          `db:"label" json:"label"`
	FieldType       CustomFieldType `db:"field_type" json:"fieldType"`
	Required        bool            `db:"required" json:"required"`
	IsEncrypted     bool            `db:"is_encrypted" json:"isEncrypted"`
	Step            int             `db:"step" json:"step"`
	Order           int             `db:"order" json:"order"`
}

// FieldValueKind tags which member of FieldValue is populated.
type FieldValueKind string

const (
	ValueText   FieldValueKind = "text"
	ValueNumber FieldValueKind = "number"
	ValueBool   FieldValueKind = "bool"
	ValueList   FieldValueKind = "list"
)

// DateLayout is the wire format of date custom fields.
const DateLayout = "2006-01-02"

var errNullValue = errors.New("null value")

// FieldValue is a typed custom field answer. Exactly one member matching Kind
// is meaningful.
type FieldValue struct {
	Kind   FieldValueKind
	Text   string
	Number float64
	Bool   bool
	List   []string
}

// TextValue builds a text field value.
func TextValue(s string) FieldValue { return FieldValue{Kind: ValueText, Text: s} }

// IsNullField reports whether err marks an explicit JSON null.
func IsNullField(err error) bool { return errors.Is(err, errNullValue) }

// DecodeFieldValue parses raw JSON according to the field type. Numbers and
// booleans sent as strings are accepted where the type expects them.
func DecodeFieldValue(t CustomFieldType, raw json.RawMessage) (FieldValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return FieldValue{}, errNullValue
	}

	switch t {
	case FieldNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			return FieldValue{Kind: ValueNumber, Number: n}, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, fmt.Errorf("expected number")
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return FieldValue{}, fmt.Errorf("expected number")
		}
		return FieldValue{Kind: ValueNumber, Number: n}, nil
	case FieldCheckbox:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return FieldValue{Kind: ValueBool, Bool: b}, nil
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return FieldValue{}, fmt.Errorf("expected boolean or list of options")
		}
		return FieldValue{Kind: ValueList, List: list}, nil
	case FieldDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, fmt.Errorf("expected date string")
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return FieldValue{}, fmt.Errorf("expected date in YYYY-MM-DD")
		}
		return TextValue(s), nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, fmt.Errorf("expected string")
		}
		return TextValue(s), nil
	}
}

// String renders the value as plain text, the form used for encryption.
func (v FieldValue) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueList:
		return strings.Join(v.List, ",")
	default:
		return v.Text
	}
}

// IsEmpty reports whether the value carries no user input.
func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case ValueText:
		return v.Text == ""
	case ValueList:
		return len(v.List) == 0
	}
	return false
}

// MarshalJSON emits the bare JSON value for the populated member.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return json.Marshal(v.Number)
	case ValueBool:
		return json.Marshal(v.Bool)
	case ValueList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	default:
		return json.Marshal(v.Text)
	}
}
