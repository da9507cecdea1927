package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// ErrInvalidManifest wraps every manifest validation failure
	ErrInvalidManifest = errors.New("invalid build manifest")

	// Blob names are relative slash-separated paths
	blobNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._/-]*$`)
)

func init() {
	validate = validator.New()
	// Report fields by their manifest names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("blobname", func(fl validator.FieldLevel) bool {
		return ValidateBlobName(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
}

// ValidateBlobName checks that name is a relative path without ".." segments
func ValidateBlobName(name string) error {
	if name == "" {
		return errors.New("blob name cannot be empty")
	}
	if !blobNamePattern.MatchString(name) {
		return fmt.Errorf("blob name '%s' contains invalid characters", name)
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("blob name '%s' has an empty or relative segment", name)
		}
	}
	return nil
}

// ValidateManifest checks struct tags first, then the cross-field rules
// tags cannot express: leaf dimensions must match embedding_dim.
func ValidateManifest(m *BuildManifest) error {
	if m == nil {
		return fmt.Errorf("%w: manifest cannot be nil", ErrInvalidManifest)
	}

	// Validate using struct tags
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, formatValidationError(err))
	}

	cv := NewConfigValidator("manifest")
	cv.When(m.Partitioner != nil, func(cv *ConfigValidator) {
		for i, leaf := range m.Partitioner.Leaves {
			cv.Custom(fmt.Sprintf("partitioner.leaves[%d]", i), func() error {
				if len(leaf) != m.EmbeddingDim {
					return fmt.Errorf("leaf has %d dimensions, embedding_dim is %d", len(leaf), m.EmbeddingDim)
				}
				return nil
			})
		}
		cv.RangeFloat("partitioner.search_fraction", float64(m.Partitioner.SearchFraction), 0, 1)
	})
	cv.When(m.Store.Kind == StoreS3, func(cv *ConfigValidator) {
		cv.Required("store.bucket", m.Store.Bucket)
	})
	cv.When(m.Store.Kind == StoreLocal, func(cv *ConfigValidator) {
		cv.Required("store.dir", m.Store.Dir)
	})
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "required_if", "required_with":
			return fmt.Errorf("%s: field is required when %s", field, param)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		case "blobname":
			return fmt.Errorf("%s: %w", field, ValidateBlobName(e.Value().(string)))
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
