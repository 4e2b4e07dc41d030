package enums

import "fmt"

// BusinessType is the legal form a seller declares.
type BusinessType string

const (
	BusinessTypeSoleProprietor BusinessType = "sole_proprietor"
	BusinessTypeLLC            BusinessType = "llc"
	BusinessTypeCorporation    BusinessType = "corporation"
	BusinessTypePartnership    BusinessType = "partnership"
	BusinessTypeNonprofit      BusinessType = "nonprofit"
)

var validBusinessTypes = []BusinessType{
	BusinessTypeSoleProprietor,
	BusinessTypeLLC,
	BusinessTypeCorporation,
	BusinessTypePartnership,
	BusinessTypeNonprofit,
}

// String implements fmt.Stringer.
func (v BusinessType) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v BusinessType) IsValid() bool {
	for _, candidate := range validBusinessTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseBusinessType converts raw input into a BusinessType.
func ParseBusinessType(value string) (BusinessType, error) {
	for _, candidate := range validBusinessTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid business type %q", value)
}
