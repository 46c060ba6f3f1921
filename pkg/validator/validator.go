// Package validator validates manifests and catalogs with go-playground
// validator and reports failures as cerr InvalidArgument errors.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kazz187/appperms/pkg/cerr"
)

// packageNameRegex matches Java-style package names with at least two segments,
// e.g. "com.example.app".
var packageNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// ProtectionLevels are the accepted values of the protection_level tag.
var ProtectionLevels = []string{"normal", "dangerous", "signature"}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their YAML names, which is what manifest authors see.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("package_name", validatePackageName)
	_ = v.RegisterValidation("protection_level", validateProtectionLevel)

	return &Validator{validate: v}
}

// Validate returns nil or a *cerr.Error with one detail per failing field.
func (v *Validator) Validate(target string, s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to validate %s: %w", target, err))
	}

	cErr := cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid %s", target), err)
	for _, e := range validationErrors {
		cErr.AddDetailMessageWithField(formatErrorMessage(e), fieldPath(e))
	}
	return cErr
}

// Var validates a single value against a tag expression.
func (v *Validator) Var(value any, tag string) bool {
	return v.validate.Var(value, tag) == nil
}

// fieldPath drops the root struct name from the namespace:
// "PackageInfo.requested_permissions[2]" -> "requested_permissions[2]".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "package_name":
		return fmt.Sprintf("%q is not a valid package name", e.Value())
	case "protection_level":
		return fmt.Sprintf("must be one of %s", strings.Join(ProtectionLevels, ", "))
	case "bcp47_language_tag":
		return fmt.Sprintf("%q is not a valid language tag", e.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "unique":
		return "must not contain duplicates"
	default:
		return fmt.Sprintf("failed on %s validation", e.Tag())
	}
}

func validatePackageName(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return packageNameRegex.MatchString(value)
}

func validateProtectionLevel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	for _, level := range ProtectionLevels {
		if value == level {
			return true
		}
	}
	return false
}
