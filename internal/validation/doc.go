// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package validation wraps go-playground/validator v10 behind a process-wide
// singleton and turns its field errors into readable messages.
//
// Survey records carry their rules as struct tags:
//
//	type Observation struct {
//	    Area  string `validate:"required,areacode"`
//	    Beach string `validate:"required,max=128"`
//	}
//
//	if verr := validation.ValidateStruct(&obs); verr != nil {
//	    return verr
//	}
//
// Custom tags:
//   - areacode: 2 to 6 upper-case letters, the survey area code (for example "LAK")
package validation
