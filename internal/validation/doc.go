// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package validation provides struct validation using go-playground/validator v10.
//
// Forms are validated on the client before any remote call is attempted. A
// failed validation returns *RequestValidationError, which lists one
// ValidationError per rejected field keyed by the field's json name.
//
// # Custom Tags
//
//   - positive: numbers, or strings parsing as numbers, greater than zero
//   - notblank: strings that are not empty after trimming whitespace
//
// # Quick Start
//
//	type ListingForm struct {
//	    Title string `json:"title" validate:"notblank,max=200"`
//	    Price string `json:"price" validate:"required,numeric,positive"`
//	    Stock string `json:"stock" validate:"required,number"`
//	}
//
//	if verr := validation.ValidateStruct(&form); verr != nil {
//	    return verr // shown inline next to the form
//	}
//
// The validator is a thread-safe singleton; struct metadata is cached after
// the first call for each type.
package validation
