package team

import (
	"regexp"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/touchline/academy/core"
)

var (
	ageGroupTag  = "agegroup"
	ageGroupText = "invalid age group"

	seasonTag   = "season"
	seasonText  = "season must look like 2024 or 2024/2025"
	seasonRegex = regexp.MustCompile(`^(\d{4})(?:/(\d{4}))?$`)
)

// InitValidators registers the team validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(ageGroupTag, func(fl validator.FieldLevel) bool {
		return core.StringIn(fl.Field().String(), AgeGroups...)
	})
	core.RegisterCustomTranslation(validate, translator, ageGroupTag, ageGroupText)

	_ = validate.RegisterValidation(seasonTag, seasonValidation)
	core.RegisterCustomTranslation(validate, translator, seasonTag, seasonText)
}

// seasonValidation accepts a single year or two consecutive years.
func seasonValidation(fl validator.FieldLevel) bool {
	m := seasonRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	if m[2] == "" {
		return true
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}
