package schema

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-playground/validator/v10"
)

// formValidate is the validator instance for form data.
var formValidate *validator.Validate

func init() {
	formValidate = validator.New(validator.WithRequiredStructEnabled())
	formValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Result is the outcome of validating a form.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

// Validate checks data and reports every failure found.
func Validate(data domain.BookingFlowData) Result {
	err := ValidateData(data)
	if err == nil {
		return Result{IsValid: true}
	}
	res := Result{}
	for _, e := range ValidationErrors(err) {
		res.Errors = append(res.Errors, e.Error())
	}
	return res
}

// ValidateData returns an *AggregateError holding every failure, or nil.
func ValidateData(data domain.BookingFlowData) error {
	var errs []error
	errs = append(errs, structErrors(data)...)
	errs = append(errs, treeErrors(data.ServiceTree)...)
	errs = append(errs, FieldErrors("baseQuestions", data.BaseQuestions)...)

	data.ServiceTree.Walk(func(n domain.FlowNode, _ *domain.FlowNode) bool {
		if n.Service != nil {
			errs = append(errs, FieldErrors("services["+n.ID+"].questions", n.Service.Questions)...)
		}
		return true
	})

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func structErrors(v any) []error {
	err := formValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{&ValidationError{Key: "data", Reason: err.Error()}}
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:] // drop the root type name
		}
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		var value any
		if s, ok := fe.Value().(string); !ok || s != "" {
			value = fe.Value()
		}
		out = append(out, &ValidationError{Key: key, Reason: "failed " + reason, Value: value})
	}
	return out
}

func treeErrors(root domain.FlowNode) []error {
	var errs []error
	if root.Type != domain.NodeTypeStart {
		errs = append(errs, &ValidationError{Key: "serviceTree", Reason: "root must be a start node", Value: string(root.Type)})
	}

	seen := make(map[string]bool)
	root.Walk(func(n domain.FlowNode, parent *domain.FlowNode) bool {
		key := "node " + n.ID
		if n.ID != "" && seen[n.ID] {
			errs = append(errs, &ValidationError{Key: key, Reason: "duplicate id"})
		}
		seen[n.ID] = true

		if parent != nil && n.Type == domain.NodeTypeStart {
			errs = append(errs, &ValidationError{Key: key, Reason: "start node must be the root"})
		}
		if n.IsLeaf() {
			if len(n.Children) > 0 {
				errs = append(errs, &ValidationError{Key: key, Reason: "service nodes cannot have children"})
			}
			if n.Service == nil {
				errs = append(errs, &ValidationError{Key: key, Reason: "service configuration is required"})
			}
		} else if n.Service != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: "only service nodes carry a service configuration"})
		}
		return true
	})
	return errs
}

// FieldErrors validates a list of questions: IDs must be unique and each
// question must carry only the sub-configuration of its own type.
func FieldErrors(path string, fields []domain.FormFieldConfig) []error {
	var errs []error
	seen := make(map[string]bool)
	for i, f := range fields {
		key := fmt.Sprintf("%s[%d]", path, i)
		if f.ID != "" && seen[f.ID] {
			errs = append(errs, &ValidationError{Key: key + ".id", Reason: "duplicate id", Value: f.ID})
		}
		seen[f.ID] = true

		if v := f.MismatchedVariant(); v != "" {
			errs = append(errs, &ValidationError{Key: key + "." + v, Reason: "does not match type", Value: string(f.Type)})
		}

		switch {
		case f.Type == domain.FieldText:
			if f.Text != nil && f.Text.MaxLength < 0 {
				errs = append(errs, &ValidationError{Key: key + ".text.maxLength", Reason: "must not be negative", Value: f.Text.MaxLength})
			}
		case f.Type == domain.FieldContactInfo:
			errs = append(errs, subfieldErrors(key+".contactInfo", f.RequiredSubfields(), domain.ContactSubfields)...)
		case f.Type == domain.FieldAddress:
			errs = append(errs, subfieldErrors(key+".address", f.RequiredSubfields(), domain.AddressSubfields)...)
		case f.Type.IsChoice():
			errs = append(errs, choiceErrors(key+".choice", f.Choice)...)
		case f.Type == domain.FieldYesNo:
		default:
			errs = append(errs, &ValidationError{Key: key + ".type", Reason: "unknown field type", Value: string(f.Type)})
		}
	}
	return errs
}

func subfieldErrors(key string, required, allowed []string) []error {
	var errs []error
	for _, r := range required {
		if !slices.Contains(allowed, r) {
			errs = append(errs, &ValidationError{Key: key + ".requiredFields", Reason: "unknown subfield", Value: r})
		}
	}
	return errs
}

func choiceErrors(key string, c *domain.ChoiceConfig) []error {
	if c == nil || len(c.Options) == 0 {
		return []error{&ValidationError{Key: key + ".options", Reason: "at least one option is required"}}
	}
	var errs []error
	seen := make(map[string]bool)
	for _, o := range c.Options {
		if seen[o.ID] {
			errs = append(errs, &ValidationError{Key: key + ".options", Reason: "duplicate option id", Value: o.ID})
		}
		seen[o.ID] = true
	}
	return errs
}
