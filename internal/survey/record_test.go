// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package survey

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/fieldsync/internal/validation"
)

func validObservation() *Observation {
	lat := 61.05
	return &Observation{
		Area:       "LAK",
		Beach:      "Valtaki",
		Observer:   "field-team-2",
		ObservedAt: time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC),
		Latitude:   &lat,
		Sightings: []Sighting{
			{Species: "ringed seal", Count: 2, PhotoPath: "/photos/a.jpg"},
			{Species: "grey heron", Count: 1},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	badLat := 123.0
	tests := []struct {
		name      string
		mutate    func(o *Observation)
		wantField string
	}{
		{"valid", func(*Observation) {}, ""},
		{"missing area", func(o *Observation) { o.Area = "" }, "Area"},
		{"missing beach", func(o *Observation) { o.Beach = "" }, "Beach"},
		{"zero time", func(o *Observation) { o.ObservedAt = time.Time{} }, "ObservedAt"},
		{"time past nanosecond range", func(o *Observation) { o.ObservedAt = time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC) }, "ObservedAt"},
		{"time before range", func(o *Observation) { o.ObservedAt = time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC) }, "ObservedAt"},
		{"latitude out of range", func(o *Observation) { o.Latitude = &badLat }, "Latitude"},
		{"negative count", func(o *Observation) { o.Sightings[1].Count = -1 }, "Count"},
		{"missing species", func(o *Observation) { o.Sightings[0].Species = "" }, "Species"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := validObservation()
			tt.mutate(o)

			err := Validate(o)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *RequestValidationError", err)
			}
			if got := verr.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("failed field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	t.Parallel()

	if err := Validate(nil); err == nil {
		t.Fatal("Validate(nil) should fail")
	}
}

func TestPhotos(t *testing.T) {
	t.Parallel()

	o := validObservation()
	o.Sightings[0].Position = 0
	o.Sightings[1].Position = 1
	o.Sightings[1].PhotoPath = "/photos/b.jpg"

	photos := o.Photos()
	if len(photos) != 2 {
		t.Fatalf("len(Photos()) = %d, want 2", len(photos))
	}
	if photos[1].Path != "/photos/b.jpg" || photos[1].ChildPosition != 1 {
		t.Errorf("photos[1] = %+v", photos[1])
	}

	ns := &NestSurvey{Nests: []Nest{{Label: "N1"}, {Label: "N2", PhotoPath: "/photos/n2.jpg", Position: 1}}}
	if got := ns.Photos(); len(got) != 1 || got[0].ChildPosition != 1 {
		t.Errorf("NestSurvey.Photos() = %+v", got)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}

	_, err := ParseKind("walrus_count")
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(unknown) error = %v, want ErrUnknownKind", err)
	}
}

func TestNewAndCollection(t *testing.T) {
	t.Parallel()

	rec, err := New(KindNestSurvey)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if rec.Kind() != KindNestSurvey {
		t.Errorf("Kind() = %q", rec.Kind())
	}
	if _, err := New("bogus"); err == nil {
		t.Error("New(bogus) should fail")
	}

	if got := KindObservation.Collection(); got != "observations" {
		t.Errorf("Collection() = %q", got)
	}
	if got := KindNestSurvey.Collection(); !strings.Contains(got, "nest-surveys") {
		t.Errorf("Collection() = %q", got)
	}
}
