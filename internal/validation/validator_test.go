// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package validation

import (
	"strings"
	"testing"
	"time"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator() should return one shared instance")
	}
}

type sample struct {
	Area  string   `validate:"required,areacode"`
	Beach string   `validate:"required,max=8"`
	Eggs  int      `validate:"gte=0,lte=50"`
	Lat   *float64 `validate:"omitempty,latitude"`
	Tags  []string `validate:"max=2"`
}

func TestValidateStruct(t *testing.T) {
	north := 95.0

	tests := []struct {
		name    string
		input   sample
		wantTag string
		wantMsg string
	}{
		{name: "valid", input: sample{Area: "LAK", Beach: "Valtaki"}},
		{name: "missing area", input: sample{Beach: "Valtaki"}, wantTag: "required", wantMsg: "Area is required"},
		{name: "lowercase area", input: sample{Area: "lak", Beach: "Valtaki"}, wantTag: "areacode", wantMsg: "Area must be 2-6 upper-case letters"},
		{name: "long beach", input: sample{Area: "LAK", Beach: "Valtakinranta"}, wantTag: "max", wantMsg: "Beach must be at most 8 characters"},
		{name: "too many eggs", input: sample{Area: "LAK", Beach: "Valtaki", Eggs: 51}, wantTag: "lte", wantMsg: "Eggs must be less than or equal to 50"},
		{name: "bad latitude", input: sample{Area: "LAK", Beach: "Valtaki", Lat: &north}, wantTag: "latitude"},
		{name: "too many tags", input: sample{Area: "LAK", Beach: "Valtaki", Tags: []string{"a", "b", "c"}}, wantTag: "max", wantMsg: "Tags must have at most 2 entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			first := verr.Errors()[0]
			if first.Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", first.Tag(), tt.wantTag)
			}
			if tt.wantMsg != "" && first.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", first.Error(), tt.wantMsg)
			}
		})
	}
}

func TestRequestValidationError_Fields(t *testing.T) {
	verr := ValidateStruct(&sample{})
	if verr == nil {
		t.Fatal("expected errors for empty struct")
	}

	fields := verr.Fields()
	if _, ok := fields["Area"]; !ok {
		t.Errorf("Fields() = %v, missing Area", fields)
	}
	if _, ok := fields["Beach"]; !ok {
		t.Errorf("Fields() = %v, missing Beach", fields)
	}
	if !strings.Contains(verr.Error(), "; ") {
		t.Errorf("Error() = %q, want joined messages", verr.Error())
	}
}

func TestValidateStruct_FieldTime(t *testing.T) {
	type stamped struct {
		At time.Time `validate:"required,fieldtime"`
	}

	tests := []struct {
		name    string
		at      time.Time
		wantTag string
	}{
		{name: "ordinary", at: time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)},
		{name: "earliest", at: EarliestFieldTime},
		{name: "last nanosecond", at: LatestFieldTime.Add(-time.Nanosecond)},
		{name: "zero", at: time.Time{}, wantTag: "required"},
		{name: "before range", at: EarliestFieldTime.Add(-time.Nanosecond), wantTag: "fieldtime"},
		{name: "at upper bound", at: LatestFieldTime, wantTag: "fieldtime"},
		{name: "year 2300", at: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), wantTag: "fieldtime"},
		{name: "year 1600", at: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), wantTag: "fieldtime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&stamped{At: tt.at})
			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if got := verr.Errors()[0].Tag(); got != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", got, tt.wantTag)
			}
		})
	}
}
