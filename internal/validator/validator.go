package validator

// =============================================================================
// VALIDATOR PHILOSOPHY: CRASH EARLY, CRASH LOUD
// =============================================================================
//
// The CUE validator is the contract guard at every boundary where hdlgen
// reads or writes JSON: vendor descriptors coming in, design facts and build
// reports going out to policies and scripts.
//
// Without validation, a renamed field or a zero width:
// - reaches AddVendor as an empty port list
// - makes a Rego rule see `undefined` and never fire
// - ends up as a quietly wrong Verilog instance
//
// With validation the build stops with the exact path that is wrong, for
// example "inputs.CLK: invalid value 0 (out of bound >=1)".
//
// WHEN VALIDATION FAILS: fix the descriptor or the code that produced the
// data. Do not loosen the schema to make an error go away.
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed vendor_schema.cue facts_schema.cue report_schema.cue
var schemaFS embed.FS

// schema is one compiled definition of an embedded .cue file.
type schema struct {
	ctx  *cue.Context
	def  cue.Value
	name string
}

func loadSchema(file, definition string) (*schema, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", file, err)
	}

	compiled := ctx.CompileBytes(schemaBytes, cue.Filename(file))
	if compiled.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", file, compiled.Err())
	}

	def := compiled.LookupPath(cue.ParsePath(definition))
	if def.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", definition, def.Err())
	}

	return &schema{ctx: ctx, def: def, name: definition}, nil
}

func (s *schema) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := s.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	return s.def.Unify(dataValue), nil
}

func (s *schema) validateJSON(jsonBytes []byte) error {
	unified, err := s.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s validation failed: %w", s.name, err)
	}
	return nil
}

func (s *schema) validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return s.validateJSON(jsonBytes)
}

// errorList returns every validation error as its own line.
func (s *schema) errorList(jsonBytes []byte) []string {
	unified, err := s.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// Validator validates vendor IP descriptors against #VendorDescriptor.
type Validator struct {
	s *schema
}

// New creates a vendor descriptor validator with the embedded CUE schema
func New() (*Validator, error) {
	s, err := loadSchema("vendor_schema.cue", "#VendorDescriptor")
	if err != nil {
		return nil, err
	}
	return &Validator{s: s}, nil
}

// Validate checks that data marshals to a valid descriptor.
func (v *Validator) Validate(data interface{}) error {
	return v.s.validate(data)
}

// ValidateJSON validates descriptor JSON bytes directly.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	return v.s.validateJSON(jsonBytes)
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(jsonBytes []byte) []string {
	return v.s.errorList(jsonBytes)
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	s *schema
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	s, err := loadSchema("facts_schema.cue", "#FactTables")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{s: s}, nil
}

// Validate checks that the fact tables conform to the facts schema.
func (v *FactsValidator) Validate(data interface{}) error {
	return v.s.validate(data)
}

// ReportValidator validates the machine-readable build report.
type ReportValidator struct {
	s *schema
}

// NewReportValidator creates a validator for build reports.
func NewReportValidator() (*ReportValidator, error) {
	s, err := loadSchema("report_schema.cue", "#BuildReport")
	if err != nil {
		return nil, err
	}
	return &ReportValidator{s: s}, nil
}

// Validate checks that the report conforms to the report schema.
func (v *ReportValidator) Validate(data interface{}) error {
	return v.s.validate(data)
}
