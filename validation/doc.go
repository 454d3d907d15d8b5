// Package validation provides input validation utilities for tenantgate handlers.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Struct tag validation is
// recommended for command/query handlers.
//
// # Struct Tag Validation
//
//	type QueryParams struct {
//	    Tier    string `validate:"required"`
//	    SleepMS int    `validate:"min=0,max=10000"`
//	}
//	err := validation.ValidateStruct(params)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Custom(name != "", "name", "name is required")
//	err := v.Validate()
package validation
