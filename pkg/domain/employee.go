package domain

import "time"

// Employee is a person that can be booked for services.
type Employee struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	ProviderID     string    `json:"providerId" db:"provider_id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email,omitempty" db:"email"`
	Active         bool      `json:"active" db:"active"`
	SyncedAt       time.Time `json:"syncedAt" db:"synced_at"`
}

// ProviderEmployee is an employee as reported by the field-service provider.
type ProviderEmployee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// EmployeeAssignment links an internal employee to its provider identity.
type EmployeeAssignment struct {
	EmployeeID         string `json:"employeeId"`
	ProviderEmployeeID string `json:"providerEmployeeId"`
}

// Assignments returns the assignments of the active employees listed in ids,
// preserving the order of ids. Unknown and inactive employees are skipped.
func Assignments(ids []string, employees []Employee) []EmployeeAssignment {
	byID := make(map[string]Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}
	out := make([]EmployeeAssignment, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok || !e.Active {
			continue
		}
		out = append(out, EmployeeAssignment{EmployeeID: e.ID, ProviderEmployeeID: e.ProviderID})
	}
	return out
}
