package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/pkg/apierror"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const maxBodyBytes = 64 << 10

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON field names instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("slot", func(fl validator.FieldLevel) bool {
		return model.Slot(fl.Field().String()).Valid()
	})
	_ = validate.RegisterTranslation("slot", translator, func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			return fe.Field() + " must be one of badge, frame, avatar"
		})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(r *http.Request, dst interface{}) *apierror.Error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required")
		}
		return apierror.BadRequest("invalid request body: " + err.Error())
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apierror.BadRequest(err.Error())
		}
		details := make([]apierror.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, apierror.FieldError{Field: fe.Field(), Message: fe.Translate(translator)})
		}
		return apierror.ValidationError("request validation failed", details...)
	}
	return nil
}
