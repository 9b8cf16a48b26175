// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package survey

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fieldsync/internal/validation"
)

// Kind names a record class. It is also the retry tag and the remote collection.
type Kind string

const (
	KindObservation Kind = "observation"
	KindNestSurvey  Kind = "nest_survey"
)

// Kinds lists every record class known to the pipeline.
var Kinds = []Kind{KindObservation, KindNestSurvey}

// ErrUnknownKind is returned for a record class that is not registered.
var ErrUnknownKind = errors.New("unknown record kind")

// ParseKind converts a stored or user supplied kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string { return string(k) }

// Collection is the plural resource name used on the wire.
func (k Kind) Collection() string {
	switch k {
	case KindNestSurvey:
		return "nest-surveys"
	default:
		return string(k) + "s"
	}
}

// Photo is binary media referenced by a child record.
type Photo struct {
	Path          string
	ChildPosition int
}

// Record is a composite record of any kind.
type Record interface {
	Kind() Kind
	// LocalID is zero until the record store assigns one.
	LocalID() int64
	// Photos lists media attached to child records, in child order.
	Photos() []Photo
}

// New returns an empty record of the given kind, ready for decoding.
func New(kind Kind) (Record, error) {
	switch kind {
	case KindObservation:
		return &Observation{}, nil
	case KindNestSurvey:
		return &NestSurvey{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Validate checks field constraints of any record kind.
func Validate(r Record) error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	if verr := validation.ValidateStruct(r); verr != nil {
		return verr
	}
	return nil
}

// Observation is one visit to a beach and everything seen there.
type Observation struct {
	ID               int64      `json:"local_id,omitempty"`
	Area             string     `json:"area" validate:"required,areacode"`
	Beach            string     `json:"beach" validate:"required,max=128"`
	Observer         string     `json:"observer,omitempty" validate:"max=128"`
	ObservedAt       time.Time  `json:"observed_at" validate:"required,fieldtime"`
	Latitude         *float64   `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude        *float64   `json:"longitude,omitempty" validate:"omitempty,longitude"`
	WaterTemperature *float64   `json:"water_temperature,omitempty" validate:"omitempty,gte=-5,lte=40"`
	IceCover         bool       `json:"ice_cover"`
	Notes            string     `json:"notes,omitempty" validate:"max=2000"`
	Sightings        []Sighting `json:"sightings" validate:"max=500,dive"`
}

// Sighting is a child of Observation.
type Sighting struct {
	ID            int64  `json:"local_id,omitempty"`
	ObservationID int64  `json:"observation_id,omitempty"`
	Position      int    `json:"position"`
	Species       string `json:"species" validate:"required,max=64"`
	Count         int    `json:"count" validate:"gte=0,lte=100000"`
	Behaviour     string `json:"behaviour,omitempty" validate:"max=64"`
	PhotoPath     string `json:"photo_path,omitempty"`
}

func (o *Observation) Kind() Kind     { return KindObservation }
func (o *Observation) LocalID() int64 { return o.ID }

func (o *Observation) Photos() []Photo {
	var photos []Photo
	for i := range o.Sightings {
		if p := o.Sightings[i].PhotoPath; p != "" {
			photos = append(photos, Photo{Path: p, ChildPosition: o.Sightings[i].Position})
		}
	}
	return photos
}

// NestSurvey is one inspection round over the nests of a beach.
type NestSurvey struct {
	ID         int64     `json:"local_id,omitempty"`
	Area       string    `json:"area" validate:"required,areacode"`
	Beach      string    `json:"beach" validate:"required,max=128"`
	Surveyor   string    `json:"surveyor,omitempty" validate:"max=128"`
	SurveyedAt time.Time `json:"surveyed_at" validate:"required,fieldtime"`
	Disturbed  bool      `json:"disturbed"`
	Notes      string    `json:"notes,omitempty" validate:"max=2000"`
	Nests      []Nest    `json:"nests" validate:"max=500,dive"`
}

// Nest is a child of NestSurvey.
type Nest struct {
	ID        int64  `json:"local_id,omitempty"`
	SurveyID  int64  `json:"survey_id,omitempty"`
	Position  int    `json:"position"`
	Label     string `json:"label" validate:"required,max=32"`
	Eggs      int    `json:"eggs" validate:"gte=0,lte=50"`
	Chicks    int    `json:"chicks" validate:"gte=0,lte=50"`
	Predated  bool   `json:"predated"`
	PhotoPath string `json:"photo_path,omitempty"`
}

func (s *NestSurvey) Kind() Kind     { return KindNestSurvey }
func (s *NestSurvey) LocalID() int64 { return s.ID }

func (s *NestSurvey) Photos() []Photo {
	var photos []Photo
	for i := range s.Nests {
		if p := s.Nests[i].PhotoPath; p != "" {
			photos = append(photos, Photo{Path: p, ChildPosition: s.Nests[i].Position})
		}
	}
	return photos
}

var (
	_ Record = (*Observation)(nil)
	_ Record = (*NestSurvey)(nil)
)
