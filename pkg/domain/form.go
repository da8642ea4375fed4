package domain

import "time"

// Themes supported by the booking page.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// BookingFlowData is the serialisable configuration of one booking form.
type BookingFlowData struct {
	ID            string            `json:"id" yaml:"id"`
	InternalName  string            `json:"internalName" yaml:"internalName" validate:"required,max=200"`
	ServiceTree   FlowNode          `json:"serviceTree" yaml:"serviceTree"`
	BaseQuestions []FormFieldConfig `json:"baseQuestions" yaml:"baseQuestions" validate:"dive"`
	Theme         string            `json:"theme" yaml:"theme" validate:"omitempty,oneof=light dark"`
	PrimaryColor  string            `json:"primaryColor,omitempty" yaml:"primaryColor,omitempty" validate:"omitempty,hexcolor"`
}

// NewBookingFlowData returns the data of a freshly created form: a single start root.
func NewBookingFlowData(id, internalName string) BookingFlowData {
	return BookingFlowData{
		ID:            id,
		InternalName:  internalName,
		ServiceTree:   NewStartNode(),
		BaseQuestions: []FormFieldConfig{},
		Theme:         ThemeLight,
	}
}

// Form is a BookingFlowData owned by an organisation, as persisted by a FormStore.
type Form struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Data           BookingFlowData `json:"data"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	// DeletedAt is set while the form sits in the restore window.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the form has been soft-deleted.
func (f *Form) Deleted() bool {
	return f.DeletedAt != nil
}

// Clone returns a copy of the form that shares no mutable state with f.
func (f *Form) Clone() *Form {
	c := *f
	if f.DeletedAt != nil {
		t := *f.DeletedAt
		c.DeletedAt = &t
	}
	c.Data = f.Data.Clone()
	return &c
}

// Clone returns a deep copy of the data.
func (d BookingFlowData) Clone() BookingFlowData {
	c := d
	c.ServiceTree = d.ServiceTree.Clone()
	c.BaseQuestions = cloneFields(d.BaseQuestions)
	return c
}

// Clone returns a deep copy of the subtree.
func (n FlowNode) Clone() FlowNode {
	c := n
	if n.Children != nil {
		c.Children = make([]FlowNode, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	if n.Service != nil {
		s := n.Service.Clone()
		c.Service = &s
	}
	return c
}

// Clone returns a deep copy of the service configuration.
func (s ServiceConfig) Clone() ServiceConfig {
	c := s
	if s.EmployeeIDs != nil {
		c.EmployeeIDs = append([]string(nil), s.EmployeeIDs...)
	}
	c.Questions = cloneFields(s.Questions)
	return c
}

func cloneFields(in []FormFieldConfig) []FormFieldConfig {
	if in == nil {
		return nil
	}
	out := make([]FormFieldConfig, len(in))
	for i, f := range in {
		out[i] = f.Clone()
	}
	return out
}

// Clone returns a deep copy of the field.
func (f FormFieldConfig) Clone() FormFieldConfig {
	c := f
	if f.Text != nil {
		t := *f.Text
		c.Text = &t
	}
	if f.ContactInfo != nil {
		c.ContactInfo = &CompositeConfig{RequiredFields: append([]string(nil), f.ContactInfo.RequiredFields...)}
	}
	if f.Address != nil {
		c.Address = &CompositeConfig{RequiredFields: append([]string(nil), f.Address.RequiredFields...)}
	}
	if f.Choice != nil {
		c.Choice = &ChoiceConfig{
			Options:    append([]ChoiceOption(nil), f.Choice.Options...),
			AllowOther: f.Choice.AllowOther,
		}
	}
	if f.YesNo != nil {
		y := *f.YesNo
		c.YesNo = &y
	}
	return c
}
