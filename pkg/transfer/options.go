package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultDeduplicator = "standard-deduplicator"
	DefaultValidator    = "integrity-validator"
	DefaultReporter     = "markdown-reporter"
	DefaultParallelism  = 1
	MaxParallelism      = 10
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Filters select SOURCE workflows. Categories combine with AND; omitted
// categories match everything.
type Filters struct {
	WorkflowIDs   []string `json:"workflowIds,omitempty"   mapstructure:"workflow_ids"   validate:"omitempty,dive,required"`
	WorkflowNames []string `json:"workflowNames,omitempty" mapstructure:"workflow_names" validate:"omitempty,dive,required"`
	Tags          []string `json:"tags,omitempty"          mapstructure:"tags"           validate:"omitempty,dive,required"`
	ExcludeTags   []string `json:"excludeTags,omitempty"   mapstructure:"exclude_tags"   validate:"omitempty,dive,required"`
}

// Options configure a single Transfer or Validate call.
//
// A nil Validators or Reporters list selects the default plugin; an empty,
// non-nil list disables that stage.
type Options struct {
	Filters         Filters  `json:"filters"         mapstructure:"filters"`
	DryRun          bool     `json:"dryRun"          mapstructure:"dry_run"`
	Parallelism     int      `json:"parallelism"     mapstructure:"parallelism"      validate:"min=1,max=10"`
	Deduplicator    string   `json:"deduplicator"    mapstructure:"deduplicator"     validate:"required"`
	Validators      []string `json:"validators"      mapstructure:"validators"       validate:"omitempty,dive,required"`
	Reporters       []string `json:"reporters"       mapstructure:"reporters"        validate:"omitempty,dive,required"`
	SkipCredentials bool     `json:"skipCredentials" mapstructure:"skip_credentials"`
}

// WithDefaults returns a copy of o with unset fields filled in.
func (o Options) WithDefaults() Options {
	if o.Parallelism == 0 {
		o.Parallelism = DefaultParallelism
	}

	if strings.TrimSpace(o.Deduplicator) == "" {
		o.Deduplicator = DefaultDeduplicator
	}

	if o.Validators == nil {
		o.Validators = []string{DefaultValidator}
	}

	if o.Reporters == nil {
		o.Reporters = []string{DefaultReporter}
	}

	o.Filters = Filters{
		WorkflowIDs:   clone(o.Filters.WorkflowIDs),
		WorkflowNames: clone(o.Filters.WorkflowNames),
		Tags:          clone(o.Filters.Tags),
		ExcludeTags:   clone(o.Filters.ExcludeTags),
	}
	o.Validators = clone(o.Validators)
	o.Reporters = clone(o.Reporters)

	return o
}

// Validate checks o after defaults have been applied.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return newError("validate_options", ErrValidation, "%v", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, describe(fieldErr))
	}

	return newError("validate_options", ErrValidation, "%s", strings.Join(messages, "; "))
}

func describe(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "min", "max":
		return fmt.Sprintf("%s must be between 1 and %d, got %v", fieldErr.Namespace(), MaxParallelism, fieldErr.Value())
	case "required":
		return fmt.Sprintf("%s must not be empty", fieldErr.Namespace())
	default:
		return fmt.Sprintf("%s failed %q", fieldErr.Namespace(), fieldErr.Tag())
	}
}

// prepare applies defaults and validates.
func (o Options) prepare() (Options, error) {
	o = o.WithDefaults()

	err := o.Validate()
	if err != nil {
		return Options{}, err
	}

	return o, nil
}

// ParseOptions decodes JSON options strictly: unknown keys, wrong types and an
// explicit parallelism of 0 are rejected.
func ParseOptions(data []byte) (Options, error) {
	var document struct {
		Options

		Parallelism *int `json:"parallelism"`
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(&document)
	if err != nil {
		return Options{}, newError("validate_options", ErrValidation, "%v", err)
	}

	if decoder.More() {
		return Options{}, newError("validate_options", ErrValidation, "unexpected data after options object")
	}

	opts := document.Options
	if document.Parallelism != nil {
		if *document.Parallelism == 0 {
			return Options{}, newError("validate_options", ErrValidation,
				"parallelism must be between 1 and %d, got 0", MaxParallelism)
		}

		opts.Parallelism = *document.Parallelism
	}

	return opts.prepare()
}

func clone(values []string) []string {
	if values == nil {
		return nil
	}

	out := make([]string, len(values))
	copy(out, values)

	return out
}
