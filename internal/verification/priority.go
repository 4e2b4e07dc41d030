package verification

import (
	"strings"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Risk factor labels stored on queue entries.
const (
	RiskMissingLicense = "missing_business_license"
	RiskMissingTaxID   = "missing_tax_id"
	RiskMissingAddress = "missing_business_address"
	RiskMissingPhone   = "missing_business_phone"
	RiskSoleProprietor = "sole_proprietor"
)

const (
	basePriority = 5
	minPriority  = 1
	maxPriority  = 10
)

// ComputePriority scores a submission for the review queue. Lower numbers are
// reviewed first: each required field present lowers the score, each risk
// factor raises it.
func ComputePriority(s Submission) (int, []string) {
	score := basePriority
	risks := []string{}

	check := func(value *string, risk string) {
		if present(value) {
			score--
			return
		}
		risks = append(risks, risk)
	}
	check(s.BusinessLicense, RiskMissingLicense)
	check(s.TaxID, RiskMissingTaxID)
	check(s.BusinessAddress, RiskMissingAddress)
	if !present(s.BusinessPhone) {
		risks = append(risks, RiskMissingPhone)
	}
	if s.BusinessType != nil && *s.BusinessType == enums.BusinessTypeSoleProprietor {
		risks = append(risks, RiskSoleProprietor)
	}
	score += len(risks)

	if score < minPriority {
		score = minPriority
	}
	if score > maxPriority {
		score = maxPriority
	}
	return score, risks
}

func present(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}
