package authz

// Names of the built-in policies.
const (
	PolicyAdminOnly     = "AdminOnly"
	PolicyAdminOrEditor = "AdminOrEditor"
	PolicyAdult         = "Adult"
	PolicyITDepartment  = "ITDepartment"
	PolicyBusinessHours = "BusinessHours"
	PolicySeniorITStaff = "SeniorITStaff"
	PolicyOwnerOnly     = "OwnerOnly"
)

// RegisterDefaults adds the built-in policy table to reg.
func RegisterDefaults(reg *Registry) error {
	defaults := []Policy{
		{PolicyAdminOnly, []Requirement{Role("Admin")}},
		{PolicyAdminOrEditor, []Requirement{Role("Admin", "Editor")}},
		{PolicyAdult, []Requirement{MinimumAge(18)}},
		{PolicyITDepartment, []Requirement{Department("IT", "Development")}},
		{PolicyBusinessHours, []Requirement{MustTimeWindow("09:00", "17:00")}},
		{PolicySeniorITStaff, []Requirement{Role("Admin"), Department("IT", "Development"), MinimumAge(25)}},
		{PolicyOwnerOnly, []Requirement{Owner()}},
	}

	for _, p := range defaults {
		if err := reg.Register(p.Name, p.Requirements...); err != nil {
			return err
		}
	}
	return nil
}
