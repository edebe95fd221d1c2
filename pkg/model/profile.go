package model

import (
	"fmt"
	"strings"
)

// Profile holds the demographic attributes answers are generated from.
// The answer engine only sees the string produced by Format.
type Profile struct {
	Income        string `yaml:"income" json:"income"`
	Occupation    string `yaml:"occupation" json:"occupation"`
	Technology    string `yaml:"technology" json:"technology"`
	Country       string `yaml:"country" json:"country"`
	State         string `yaml:"state" json:"state"`
	Gender        string `yaml:"gender" json:"gender"`
	DateOfBirth   string `yaml:"date_of_birth" json:"date_of_birth"`
	MaritalStatus string `yaml:"marital_status" json:"marital_status"`
	Education     string `yaml:"education" json:"education"`
	Employment    string `yaml:"employment" json:"employment"`
	Ethnicity     string `yaml:"ethnicity" json:"ethnicity"`
}

// Format renders the profile as a bullet list. Empty attributes are omitted.
func (p *Profile) Format() string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, value)
	}

	line("Annual Income", p.Income)
	line("Occupation", p.Occupation)
	line("Technology", p.Technology)
	switch {
	case p.State != "" && p.Country != "":
		line("Location", p.State+", "+p.Country)
	case p.Country != "":
		line("Location", p.Country)
	default:
		line("Location", p.State)
	}
	line("Gender", p.Gender)
	line("Date of Birth", p.DateOfBirth)
	line("Marital Status", p.MaritalStatus)
	line("Education", p.Education)
	line("Employment", p.Employment)
	line("Ethnicity", p.Ethnicity)

	return b.String()
}
