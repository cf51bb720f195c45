package domain

import (
	"fmt"
	"strings"
)

type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Genders lists the selectable options in display order.
var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

// ParseGender accepts one of the selectable options, case-insensitively.
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Genders {
		if g == known {
			return g, nil
		}
	}
	return GenderUnset, fmt.Errorf("unknown gender %q", s)
}

// Profile is what the onboarding gate collects. It stays in memory for the
// session and is never sent to the completion endpoint.
type Profile struct {
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
}
