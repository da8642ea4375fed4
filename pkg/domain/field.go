package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// FieldType tags the variant of a FormFieldConfig.
type FieldType string

const (
	FieldText           FieldType = "text"
	FieldContactInfo    FieldType = "contact-info"
	FieldAddress        FieldType = "address"
	FieldSingleChoice   FieldType = "single-choice"
	FieldMultipleChoice FieldType = "multiple-choice"
	FieldDropdown       FieldType = "dropdown"
	FieldYesNo          FieldType = "yes-no"
)

// IsChoice reports whether the field type offers a fixed list of options.
func (t FieldType) IsChoice() bool {
	return t == FieldSingleChoice || t == FieldMultipleChoice || t == FieldDropdown
}

// Contact-info subfields.
const (
	ContactFirstName = "firstName"
	ContactLastName  = "lastName"
	ContactEmail     = "email"
	ContactPhone     = "phone"
	ContactCompany   = "company"
)

// Address subfields.
const (
	AddressStreet     = "street"
	AddressCity       = "city"
	AddressState      = "state"
	AddressPostalCode = "postalCode"
	AddressCountry    = "country"
)

// ContactSubfields lists the subfields a contact-info field may require.
var ContactSubfields = []string{ContactFirstName, ContactLastName, ContactEmail, ContactPhone, ContactCompany}

// AddressSubfields lists the subfields an address field may require.
var AddressSubfields = []string{AddressStreet, AddressCity, AddressState, AddressPostalCode, AddressCountry}

// FormFieldConfig is a question asked while booking.
// Exactly one of the type-specific configs may be set, matching Type.
type FormFieldConfig struct {
	ID       string    `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Type     FieldType `json:"type" yaml:"type" mapstructure:"type" validate:"required"`
	Label    string    `json:"label" yaml:"label" mapstructure:"label" validate:"required"`
	Required bool      `json:"required" yaml:"required" mapstructure:"required"`

	Text        *TextConfig      `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	ContactInfo *CompositeConfig `json:"contactInfo,omitempty" yaml:"contactInfo,omitempty" mapstructure:"contact_info"`
	Address     *CompositeConfig `json:"address,omitempty" yaml:"address,omitempty" mapstructure:"address"`
	Choice      *ChoiceConfig    `json:"choice,omitempty" yaml:"choice,omitempty" mapstructure:"choice"`
	YesNo       *YesNoConfig     `json:"yesNo,omitempty" yaml:"yesNo,omitempty" mapstructure:"yes_no"`
}

// TextConfig configures a free-text field.
type TextConfig struct {
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty" mapstructure:"placeholder"`
	Multiline   bool   `json:"multiline,omitempty" yaml:"multiline,omitempty" mapstructure:"multiline"`
	MaxLength   int    `json:"maxLength,omitempty" yaml:"maxLength,omitempty" mapstructure:"max_length" validate:"gte=0"`
}

// CompositeConfig configures fields made of several subfields (contact info, address).
type CompositeConfig struct {
	RequiredFields []string `json:"requiredFields" yaml:"requiredFields" mapstructure:"required_fields"`
}

// ChoiceOption is one selectable answer.
type ChoiceOption struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Label string `json:"label" yaml:"label" mapstructure:"label" validate:"required"`
}

// ChoiceConfig configures single-choice, multiple-choice and dropdown fields.
type ChoiceConfig struct {
	Options    []ChoiceOption `json:"options" yaml:"options" mapstructure:"options" validate:"dive"`
	AllowOther bool           `json:"allowOther,omitempty" yaml:"allowOther,omitempty" mapstructure:"allow_other"`
}

// YesNoConfig configures a yes/no question.
type YesNoConfig struct {
	YesLabel string `json:"yesLabel,omitempty" yaml:"yesLabel,omitempty" mapstructure:"yes_label"`
	NoLabel  string `json:"noLabel,omitempty" yaml:"noLabel,omitempty" mapstructure:"no_label"`
}

// MismatchedVariant returns the name of a type-specific config that does not
// belong to f.Type, or "" when the union is consistent.
func (f FormFieldConfig) MismatchedVariant() string {
	switch {
	case f.Text != nil && f.Type != FieldText:
		return "text"
	case f.ContactInfo != nil && f.Type != FieldContactInfo:
		return "contactInfo"
	case f.Address != nil && f.Type != FieldAddress:
		return "address"
	case f.Choice != nil && !f.Type.IsChoice():
		return "choice"
	case f.YesNo != nil && f.Type != FieldYesNo:
		return "yesNo"
	}
	return ""
}

// RequiredSubfields returns the subfields a composite field marks as required.
func (f FormFieldConfig) RequiredSubfields() []string {
	switch f.Type {
	case FieldContactInfo:
		if f.ContactInfo != nil {
			return f.ContactInfo.RequiredFields
		}
	case FieldAddress:
		if f.Address != nil {
			return f.Address.RequiredFields
		}
	}
	return nil
}

// DecodeField builds a FormFieldConfig from a generic map, as found in YAML
// front matter or loosely typed JSON payloads.
func DecodeField(raw map[string]any) (FormFieldConfig, error) {
	var f FormFieldConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &f,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return FormFieldConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return FormFieldConfig{}, fmt.Errorf("failed to decode field: %w", err)
	}
	return f, nil
}

// DecodeFields decodes a list of generic maps with DecodeField.
func DecodeFields(raw []map[string]any) ([]FormFieldConfig, error) {
	out := make([]FormFieldConfig, 0, len(raw))
	for i, r := range raw {
		f, err := DecodeField(r)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}
