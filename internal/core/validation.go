package core

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// PhoneRegion is the default region used to parse phone numbers without a country prefix.
var PhoneRegion = "BR"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// decimal.Decimal is validated as its float value so gt/gte/lte work on amounts.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidatePhoneNumber(fl.Field().String(), PhoneRegion) == nil
	})

	// places=N rejects amounts with more decimal places than the NUMERIC column keeps,
	// so they cannot round to a different value on insert.
	_ = v.RegisterValidation("places", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Float64 {
			return true
		}
		places, err := strconv.ParseInt(fl.Param(), 10, 32)
		if err != nil {
			return false
		}
		return HasPlaces(decimal.NewFromFloat(fl.Field().Float()), int32(places))
	})

	return v
}

// HasPlaces reports whether d is exact at the given number of decimal places.
func HasPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// ValidatePhoneNumber checks that phoneNumber is a valid number for the given region.
func ValidatePhoneNumber(phoneNumber, region string) error {
	p, err := libphonenumber.Parse(phoneNumber, region)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return errors.New("phone number is not valid")
	}
	return nil
}

// Validate runs the struct tags of v and returns a *ValidationError listing every failed field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &ValidationError{Message: err.Error()}
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe.Namespace())] = fe.Tag()
	}
	return &ValidationError{Message: "invalid input", Fields: fields}
}

// fieldPath drops the root struct name from a validator namespace: "InvoiceInput.items[0].productId" -> "items[0].productId".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
