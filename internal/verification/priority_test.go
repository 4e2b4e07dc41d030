package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

func strPtr(v string) *string { return &v }

func TestComputePriority(t *testing.T) {
	sole := enums.BusinessTypeSoleProprietor
	llc := enums.BusinessTypeLLC
	cases := []struct {
		name     string
		in       Submission
		priority int
		risks    []string
	}{
		{
			name:     "complete llc",
			in:       Submission{BusinessType: &llc, BusinessLicense: strPtr("L-1"), TaxID: strPtr("12-3"), BusinessAddress: strPtr("1 Main"), BusinessPhone: strPtr("555")},
			priority: 2,
			risks:    []string{},
		},
		{
			name:     "empty submission",
			in:       Submission{},
			priority: 9,
			risks:    []string{RiskMissingLicense, RiskMissingTaxID, RiskMissingAddress, RiskMissingPhone},
		},
		{
			name:     "empty sole proprietor clamps",
			in:       Submission{BusinessType: &sole, TaxID: strPtr("  ")},
			priority: 10,
			risks:    []string{RiskMissingLicense, RiskMissingTaxID, RiskMissingAddress, RiskMissingPhone, RiskSoleProprietor},
		},
		{
			name:     "license only",
			in:       Submission{BusinessLicense: strPtr("L-1"), BusinessPhone: strPtr("555")},
			priority: 6,
			risks:    []string{RiskMissingTaxID, RiskMissingAddress},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			priority, risks := ComputePriority(tc.in)
			assert.Equal(t, tc.priority, priority)
			assert.Equal(t, tc.risks, risks)
		})
	}
}

func TestMoreCompleteSubmissionSortsFirst(t *testing.T) {
	partial, _ := ComputePriority(Submission{TaxID: strPtr("1"), BusinessPhone: strPtr("555")})
	complete, _ := ComputePriority(Submission{TaxID: strPtr("1"), BusinessLicense: strPtr("L"), BusinessAddress: strPtr("A"), BusinessPhone: strPtr("555")})
	assert.Less(t, complete, partial)
}

func TestComputeLevel(t *testing.T) {
	assert.Equal(t, 0, ComputeLevel(nil, false))
	assert.Equal(t, 1, ComputeLevel(&models.User{EmailVerified: true}, false))
	assert.Equal(t, 4, ComputeLevel(&models.User{EmailVerified: true}, true))
	assert.Equal(t, 4, ComputeLevel(&models.User{}, true))
	all := &models.User{EmailVerified: true, PhoneVerified: true, IdentityVerified: true, AddressVerified: true}
	assert.Equal(t, 4, ComputeLevel(all, false))
	assert.Equal(t, 5, ComputeLevel(all, true))
}
