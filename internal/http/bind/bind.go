// Package bind decodes JSON request bodies and URL ids, writing the error response on failure.
package bind

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/rentledger/internal/http/respond"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	// Lets gt=0 and required work on decimal.Decimal fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}

		return nil
	}, decimal.Decimal{})

	return v
}

// JSON decodes the body into dst and validates its struct tags.
// It returns false after writing a 400 or 422 response.
func JSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "invalid JSON body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, respond.CodeValidation, describe(err))
		return false
	}

	return true
}

// ID reads a positive integer URL parameter. It returns false after writing a 422 response.
func ID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusUnprocessableEntity, respond.CodeValidation,
			fmt.Sprintf("%s must be a positive integer", param))
		return 0, false
	}

	return id, true
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}

	return strings.Join(parts, "; ")
}
