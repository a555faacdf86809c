package change

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	modelTypeTag  = "modeltype"
	modelTypeText = "invalid model type"

	changeTypeTag  = "changetype"
	changeTypeText = "invalid change type"

	requiredTag = "required"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(modelTypeTag, modelTypeValidation)
	core.RegisterCustomTranslation(validate, translator, modelTypeTag, modelTypeText)

	_ = validate.RegisterValidation(changeTypeTag, changeTypeValidation)
	core.RegisterCustomTranslation(validate, translator, changeTypeTag, changeTypeText)

	validate.RegisterStructValidation(newChangeRequestStructValidation, NewChangeRequest{})
}

// Custom Validators

// modelTypeValidation checks that the value is one of AllModelTypes.
func modelTypeValidation(fl validator.FieldLevel) bool {
	return ModelType(fl.Field().String()).Valid()
}

// changeTypeValidation checks that the value is one of AllChangeTypes.
func changeTypeValidation(fl validator.FieldLevel) bool {
	return ChangeType(fl.Field().String()).Valid()
}

// newChangeRequestStructValidation requires ObjectID for anything but a create.
func newChangeRequestStructValidation(sl validator.StructLevel) {
	ncr, ok := sl.Current().Interface().(NewChangeRequest)
	if !ok {
		return
	}
	if ncr.ChangeType != Create && ncr.ObjectID == "" {
		sl.ReportError(ncr.ObjectID, "object_id", "ObjectID", requiredTag, "")
	}
}

func (ncr *NewChangeRequest) Validate(validate *validator.Validate) error {
	ncr.ObjectID = core.CleanString(ncr.ObjectID)
	ncr.Notes = core.CleanString(ncr.Notes)
	return validate.Struct(ncr)
}
