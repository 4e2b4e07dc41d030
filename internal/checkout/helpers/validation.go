package helpers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/types"
)

var addressValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateShippingAddress normalizes the address and checks the required
// fields, naming each failing field in the error details.
func ValidateShippingAddress(addr types.Address) (types.Address, error) {
	addr = addr.Normalize()
	if err := addressValidator.Struct(addr); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = fe.Tag()
			}
			return addr, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping address").WithDetails(fields)
		}
		return addr, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	return addr, nil
}
