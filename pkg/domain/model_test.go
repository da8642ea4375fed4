package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingFlowData_Defaults(t *testing.T) {
	d := NewBookingFlowData("f1", "Clinic")
	assert.Equal(t, FlowNode{ID: RootNodeID, Type: NodeTypeStart, Label: "Start"}, d.ServiceTree)
	assert.Equal(t, ThemeLight, d.Theme)
	assert.Empty(t, d.BaseQuestions)
}

func TestFlowNode_FindAndServices(t *testing.T) {
	d := baseData()

	n, ok := d.ServiceTree.Find("s2")
	require.True(t, ok)
	assert.Equal(t, "Color", n.Label)

	_, ok = d.ServiceTree.Find("missing")
	assert.False(t, ok)

	var ids []string
	for _, s := range d.ServiceTree.Services() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)
	assert.Equal(t, []string{"root", "g1", "s1", "s2", "s3"}, d.ServiceTree.IDs())
}

func TestSchedulingSettings_Defaults(t *testing.T) {
	var s SchedulingSettings
	assert.Equal(t, 45*time.Minute, s.SlotLength(45))
	assert.Equal(t, DefaultSlotMinutes*time.Minute, s.SlotLength(0))

	s = SchedulingSettings{SlotMinutes: 30, BufferMinutes: 15}
	assert.Equal(t, 45*time.Minute, s.Step(60))

	s.SlotIntervalMinutes = 15
	assert.Equal(t, 15*time.Minute, s.Step(60))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, limited := s.Horizon(now)
	assert.False(t, limited)

	s.MaxAdvanceDays = 10
	h, limited := s.Horizon(now)
	assert.True(t, limited)
	assert.Equal(t, now.AddDate(0, 0, 10), h)
}

func TestTimeRange_Minutes(t *testing.T) {
	start, end, err := TimeRange{Start: "09:00", End: "17:30"}.Minutes()
	require.NoError(t, err)
	assert.Equal(t, 540, start)
	assert.Equal(t, 1050, end)

	_, _, err = TimeRange{Start: "17:00", End: "09:00"}.Minutes()
	assert.ErrorIs(t, err, ErrInvalidBusinessHours)

	_, _, err = TimeRange{Start: "9am", End: "17:00"}.Minutes()
	assert.ErrorIs(t, err, ErrInvalidBusinessHours)
}

func TestOrganization_Location(t *testing.T) {
	loc, err := Organization{Timezone: "Australia/Sydney"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", loc.String())

	_, err = Organization{Timezone: "Mars/Olympus"}.Location()
	assert.ErrorIs(t, err, ErrInvalidTimezone)

	loc, err = Organization{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestBusinessHours_For(t *testing.T) {
	bh := BusinessHours{"monday": {{Start: "09:00", End: "12:00"}}}
	assert.Len(t, bh.For(time.Monday), 1)
	assert.Empty(t, bh.For(time.Sunday))
}

func TestAssignments_SkipsInactiveAndUnknown(t *testing.T) {
	emps := []Employee{
		{ID: "e1", ProviderID: "p1", Active: true},
		{ID: "e2", ProviderID: "p2", Active: false},
		{ID: "e3", ProviderID: "p3", Active: true},
	}
	got := Assignments([]string{"e3", "e2", "missing", "e1"}, emps)
	assert.Equal(t, []EmployeeAssignment{
		{EmployeeID: "e3", ProviderEmployeeID: "p3"},
		{EmployeeID: "e1", ProviderEmployeeID: "p1"},
	}, got)
}

func TestDecodeField(t *testing.T) {
	f, err := DecodeField(map[string]any{
		"id":       "contact",
		"type":     "contact-info",
		"label":    "Your details",
		"required": "true",
		"contact_info": map[string]any{
			"required_fields": []any{"email", "phone"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, FieldContactInfo, f.Type)
	assert.True(t, f.Required)
	assert.Equal(t, []string{"email", "phone"}, f.RequiredSubfields())
	assert.Empty(t, f.MismatchedVariant())

	_, err = DecodeField(map[string]any{"id": "x", "colour": "red"})
	assert.Error(t, err)
}

func TestMismatchedVariant(t *testing.T) {
	f := FormFieldConfig{ID: "q", Type: FieldYesNo, Label: "Ok?", Choice: &ChoiceConfig{}}
	assert.Equal(t, "choice", f.MismatchedVariant())

	f = FormFieldConfig{ID: "q", Type: FieldDropdown, Label: "Pick", Choice: &ChoiceConfig{}}
	assert.Empty(t, f.MismatchedVariant())
}
