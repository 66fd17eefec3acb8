package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Minimal internal validator to avoid an external dependency. Supports:
// - required
// - email
// - ssn (XXX-XX-XXXX)
// - phone (E.164-ish, optional leading +)
// - dateok (YYYY-MM-DD)
// - adult (date of birth at least 18 years back)
// - money (positive decimal)

var (
	reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	reSSN   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	rePhone = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	reMoney = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ValidateStruct inspects `validate:"..."` tags on string fields and returns
// the first violation found.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		fv := v.Field(i)
		var sval string
		if fv.IsValid() && fv.Kind() == reflect.String {
			sval = strings.TrimSpace(fv.String())
		}
		for _, rule := range strings.Split(tag, ",") {
			if err := applyRule(field.Name, strings.TrimSpace(rule), sval); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyRule(name, rule, val string) error {
	if rule != "required" && val == "" {
		return nil
	}
	switch rule {
	case "required":
		if val == "" {
			return errors.New(name + " is required")
		}
	case "email":
		if !reEmail.MatchString(strings.ToLower(val)) {
			return errors.New(name + " must be a valid email address")
		}
	case "ssn":
		if !reSSN.MatchString(val) {
			return errors.New(name + " must be in format XXX-XX-XXXX")
		}
	case "phone":
		if !rePhone.MatchString(val) {
			return errors.New(name + " must be a valid phone number")
		}
	case "dateok":
		if _, err := time.Parse("2006-01-02", val); err != nil {
			return errors.New(name + " must be a date in format YYYY-MM-DD")
		}
	case "adult":
		dob, err := time.Parse("2006-01-02", val)
		if err != nil {
			return errors.New(name + " must be a date in format YYYY-MM-DD")
		}
		if dob.AddDate(18, 0, 0).After(time.Now()) {
			return errors.New("applicant must be at least 18 years old")
		}
	case "money":
		if !reMoney.MatchString(val) {
			return errors.New(name + " must be a positive amount")
		}
	}
	return nil
}

// MaskSSN shows only the last 4 digits for display surfaces.
func MaskSSN(ssn string) string {
	if len(ssn) < 4 {
		return "***-**-****"
	}
	return "***-**-" + ssn[len(ssn)-4:]
}
