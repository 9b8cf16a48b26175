// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// Insert persists rec and its children in one transaction and returns the
// new local id. The id is also written back onto rec and its children.
// Every error wraps ErrStorageFault.
func (s *Store) Insert(ctx context.Context, rec survey.Record) (id int64, err error) {
	kind := "unknown"
	if rec != nil {
		kind = rec.Kind().String()
	}
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("insert", kind, time.Since(start), err) }()

	if err := s.checkOpen(); err != nil {
		return 0, storageFault("insert", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageFault("begin insert", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	createdAt := s.now().UnixNano()
	var childIDs []int64
	switch r := rec.(type) {
	case *survey.Observation:
		id, childIDs, err = insertObservation(ctx, tx, r, createdAt)
	case *survey.NestSurvey:
		id, childIDs, err = insertNestSurvey(ctx, tx, r, createdAt)
	default:
		return 0, storageFault("insert", fmt.Errorf("%w: %T", survey.ErrUnknownKind, rec))
	}
	if err != nil {
		return 0, storageFault("insert "+kind, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, storageFault("commit "+kind, err)
	}

	assignIDs(rec, id, childIDs)
	return id, nil
}

// assignIDs runs after commit so a rolled back insert leaves rec untouched.
func assignIDs(rec survey.Record, id int64, childIDs []int64) {
	switch r := rec.(type) {
	case *survey.Observation:
		r.ID = id
		for i := range r.Sightings {
			r.Sightings[i].ID = childIDs[i]
			r.Sightings[i].ObservationID = id
			r.Sightings[i].Position = i
		}
	case *survey.NestSurvey:
		r.ID = id
		for i := range r.Nests {
			r.Nests[i].ID = childIDs[i]
			r.Nests[i].SurveyID = id
			r.Nests[i].Position = i
		}
	}
}

// encodeTime refuses timestamps that int64 nanoseconds cannot hold
// (before 1677 or after 2262) instead of letting UnixNano wrap them.
func encodeTime(t time.Time) (int64, error) {
	n := t.UnixNano()
	if !time.Unix(0, n).Equal(t) {
		return 0, fmt.Errorf("timestamp %s outside storable range", t.UTC().Format(time.RFC3339))
	}
	return n, nil
}

func insertObservation(ctx context.Context, tx *sql.Tx, o *survey.Observation, createdAt int64) (int64, []int64, error) {
	observedAt, err := encodeTime(o.ObservedAt)
	if err != nil {
		return 0, nil, fmt.Errorf("observed_at: %w", err)
	}
	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO observations
		(area, beach, observer, observed_at, latitude, longitude, water_temperature, ice_cover, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		o.Area,
		o.Beach,
		o.Observer,
		observedAt,
		nullFloat(o.Latitude),
		nullFloat(o.Longitude),
		nullFloat(o.WaterTemperature),
		o.IceCover,
		o.Notes,
		createdAt,
	).Scan(&id)
	if err != nil {
		return 0, nil, fmt.Errorf("observation: %w", err)
	}

	childIDs := make([]int64, len(o.Sightings))
	for i := range o.Sightings {
		sg := &o.Sightings[i]
		var childID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO sightings
			(observation_id, child_index, species, individuals, behaviour, photo_path)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`, id, i, sg.Species, sg.Count, sg.Behaviour, sg.PhotoPath).Scan(&childID)
		if err != nil {
			return 0, nil, fmt.Errorf("sighting %d: %w", i, err)
		}
		childIDs[i] = childID
	}
	return id, childIDs, nil
}

func insertNestSurvey(ctx context.Context, tx *sql.Tx, ns *survey.NestSurvey, createdAt int64) (int64, []int64, error) {
	surveyedAt, err := encodeTime(ns.SurveyedAt)
	if err != nil {
		return 0, nil, fmt.Errorf("surveyed_at: %w", err)
	}
	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO nest_surveys
		(area, beach, surveyor, surveyed_at, disturbed, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		ns.Area,
		ns.Beach,
		ns.Surveyor,
		surveyedAt,
		ns.Disturbed,
		ns.Notes,
		createdAt,
	).Scan(&id)
	if err != nil {
		return 0, nil, fmt.Errorf("nest survey: %w", err)
	}

	childIDs := make([]int64, len(ns.Nests))
	for i := range ns.Nests {
		n := &ns.Nests[i]
		var childID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO nests
			(survey_id, child_index, label, eggs, chicks, predated, photo_path)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`, id, i, n.Label, n.Eggs, n.Chicks, n.Predated, n.PhotoPath).Scan(&childID)
		if err != nil {
			return 0, nil, fmt.Errorf("nest %d: %w", i, err)
		}
		childIDs[i] = childID
	}
	return id, childIDs, nil
}

// Load reads the record of the given kind. A missing id returns ErrNotFound;
// any other failure wraps ErrStorageFault.
func (s *Store) Load(ctx context.Context, kind survey.Kind, id int64) (survey.Record, error) {
	switch kind {
	case survey.KindObservation:
		return s.LoadObservation(ctx, id)
	case survey.KindNestSurvey:
		return s.LoadNestSurvey(ctx, id)
	default:
		return nil, fmt.Errorf("%w: %q", survey.ErrUnknownKind, kind)
	}
}

// LoadObservation reads an observation with its sightings in child order.
func (s *Store) LoadObservation(ctx context.Context, id int64) (_ *survey.Observation, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation("load", survey.KindObservation.String(), time.Since(start), ignoreNotFound(err))
	}()

	if err := s.checkOpen(); err != nil {
		return nil, storageFault("load observation", err)
	}

	o := &survey.Observation{ID: id}
	var observedAt int64
	var lat, lon, temp sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT area, beach, observer, observed_at, latitude, longitude, water_temperature, ice_cover, notes
		FROM observations WHERE id = ?
	`, id).Scan(&o.Area, &o.Beach, &o.Observer, &observedAt, &lat, &lon, &temp, &o.IceCover, &o.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageFault("load observation", err)
	}
	o.ObservedAt = time.Unix(0, observedAt).UTC()
	o.Latitude = floatPtr(lat)
	o.Longitude = floatPtr(lon)
	o.WaterTemperature = floatPtr(temp)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, child_index, species, individuals, behaviour, photo_path
		FROM sightings WHERE observation_id = ? ORDER BY child_index
	`, id)
	if err != nil {
		return nil, storageFault("load sightings", err)
	}
	defer rows.Close()

	for rows.Next() {
		sg := survey.Sighting{ObservationID: id}
		if err := rows.Scan(&sg.ID, &sg.Position, &sg.Species, &sg.Count, &sg.Behaviour, &sg.PhotoPath); err != nil {
			return nil, storageFault("scan sighting", err)
		}
		o.Sightings = append(o.Sightings, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault("iterate sightings", err)
	}
	return o, nil
}

// LoadNestSurvey reads a nest survey with its nests in child order.
func (s *Store) LoadNestSurvey(ctx context.Context, id int64) (_ *survey.NestSurvey, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation("load", survey.KindNestSurvey.String(), time.Since(start), ignoreNotFound(err))
	}()

	if err := s.checkOpen(); err != nil {
		return nil, storageFault("load nest survey", err)
	}

	ns := &survey.NestSurvey{ID: id}
	var surveyedAt int64
	err = s.db.QueryRowContext(ctx, `
		SELECT area, beach, surveyor, surveyed_at, disturbed, notes
		FROM nest_surveys WHERE id = ?
	`, id).Scan(&ns.Area, &ns.Beach, &ns.Surveyor, &surveyedAt, &ns.Disturbed, &ns.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("nest survey %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageFault("load nest survey", err)
	}
	ns.SurveyedAt = time.Unix(0, surveyedAt).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, child_index, label, eggs, chicks, predated, photo_path
		FROM nests WHERE survey_id = ? ORDER BY child_index
	`, id)
	if err != nil {
		return nil, storageFault("load nests", err)
	}
	defer rows.Close()

	for rows.Next() {
		n := survey.Nest{SurveyID: id}
		if err := rows.Scan(&n.ID, &n.Position, &n.Label, &n.Eggs, &n.Chicks, &n.Predated, &n.PhotoPath); err != nil {
			return nil, storageFault("scan nest", err)
		}
		ns.Nests = append(ns.Nests, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault("iterate nests", err)
	}
	return ns, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
