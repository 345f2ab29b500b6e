package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cshub/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	statisticTag  = "statistic"
	statisticText = "invalid statistic"

	negativeStatText = "this statistic cannot drop below zero"
)

// InitValidators registers the user validators along with their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(statisticTag, statisticValidation)
	core.RegisterCustomTranslation(validate, translator, statisticTag, statisticText)
}

// Custom Validators

// roleValidation checks that the role is one of AllRoles.
func roleValidation(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}

// statisticValidation checks that the statistic is one of AllStatistics.
func statisticValidation(fl validator.FieldLevel) bool {
	return IsValidStatistic(fl.Field().String())
}
