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
	"unicode/utf8"

	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// Delivery records that a record reached the remote server.
type Delivery struct {
	Kind        survey.Kind `json:"kind"`
	RecordID    int64       `json:"record_id"`
	RemoteID    string      `json:"remote_id"`
	DeliveredAt time.Time   `json:"delivered_at"`
}

var parentTables = map[survey.Kind]string{
	survey.KindObservation: "observations",
	survey.KindNestSurvey:  "nest_surveys",
}

// MarkDelivered records a successful delivery. Marking twice keeps the first row.
func (s *Store) MarkDelivered(ctx context.Context, kind survey.Kind, id int64, remoteID string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("mark_delivered", kind.String(), time.Since(start), err) }()

	if err := s.checkOpen(); err != nil {
		return storageFault("mark delivered", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deliveries (kind, record_id, remote_id, delivered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, record_id) DO NOTHING
	`, kind.String(), id, remoteID, s.now().UnixNano())
	if err != nil {
		return storageFault("mark delivered", err)
	}
	return nil
}

// maxRejectionReason bounds the stored reason text.
const maxRejectionReason = 1024

// MarkRejected records that the server refused a record for a reason other
// than connectivity. Rejected records are excluded from Undelivered so the
// reconciliation sweep never resubmits them.
func (s *Store) MarkRejected(ctx context.Context, kind survey.Kind, id int64, reason string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("mark_rejected", kind.String(), time.Since(start), err) }()

	if err := s.checkOpen(); err != nil {
		return storageFault("mark rejected", err)
	}
	reason = truncateReason(reason)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rejections (kind, record_id, reason, rejected_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, record_id) DO NOTHING
	`, kind.String(), id, reason, s.now().UnixNano())
	if err != nil {
		return storageFault("mark rejected", err)
	}
	return nil
}

// truncateReason cuts reason to at most maxRejectionReason bytes without
// splitting a UTF-8 sequence.
func truncateReason(reason string) string {
	if len(reason) <= maxRejectionReason {
		return reason
	}
	cut := maxRejectionReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

// Delivery returns the delivery row for a record, or ErrNotFound if it was
// never delivered.
func (s *Store) Delivery(ctx context.Context, kind survey.Kind, id int64) (*Delivery, error) {
	if err := s.checkOpen(); err != nil {
		return nil, storageFault("load delivery", err)
	}

	d := &Delivery{Kind: kind, RecordID: id}
	var deliveredAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT remote_id, delivered_at FROM deliveries WHERE kind = ? AND record_id = ?
	`, kind.String(), id).Scan(&d.RemoteID, &deliveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delivery %s/%d: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, storageFault("load delivery", err)
	}
	d.DeliveredAt = time.Unix(0, deliveredAt).UTC()
	return d, nil
}

// Settled reports whether a record already has a delivery or a rejection row.
func (s *Store) Settled(ctx context.Context, kind survey.Kind, id int64) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, storageFault("check settled", err)
	}

	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM deliveries WHERE kind = ? AND record_id = ?) +
			(SELECT COUNT(*) FROM rejections WHERE kind = ? AND record_id = ?)
	`, kind.String(), id, kind.String(), id).Scan(&n)
	if err != nil {
		return false, storageFault("check settled", err)
	}
	return n > 0, nil
}

// Undelivered lists ids of records of kind created at or before olderThan
// that were neither delivered nor rejected, in id order.
func (s *Store) Undelivered(ctx context.Context, kind survey.Kind, olderThan time.Time) (ids []int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("undelivered", kind.String(), time.Since(start), err) }()

	table, ok := parentTables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", survey.ErrUnknownKind, kind)
	}
	if err := s.checkOpen(); err != nil {
		return nil, storageFault("list undelivered", err)
	}

	//nolint:gosec // table comes from parentTables, never from input
	query := fmt.Sprintf(`
		SELECT r.id FROM %s r
		LEFT JOIN deliveries d ON d.kind = ? AND d.record_id = r.id
		LEFT JOIN rejections j ON j.kind = ? AND j.record_id = r.id
		WHERE d.record_id IS NULL AND j.record_id IS NULL AND r.created_at <= ?
		ORDER BY r.id
	`, table)

	rows, err := s.db.QueryContext(ctx, query, kind.String(), kind.String(), olderThan.UnixNano())
	if err != nil {
		return nil, storageFault("list undelivered", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageFault("scan undelivered", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault("iterate undelivered", err)
	}
	return ids, nil
}

// KindCount is the number of stored, delivered and rejected records of one kind.
type KindCount struct {
	Stored    int64 `json:"stored"`
	Delivered int64 `json:"delivered"`
	Rejected  int64 `json:"rejected"`
}

// Counts returns per-kind totals.
func (s *Store) Counts(ctx context.Context) (map[survey.Kind]KindCount, error) {
	if err := s.checkOpen(); err != nil {
		return nil, storageFault("count", err)
	}

	out := make(map[survey.Kind]KindCount, len(parentTables))
	for _, kind := range survey.Kinds {
		var stored, delivered, rejected int64
		//nolint:gosec // table comes from parentTables
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", parentTables[kind])).Scan(&stored); err != nil {
			return nil, storageFault("count "+kind.String(), err)
		}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deliveries WHERE kind = ?", kind.String()).Scan(&delivered); err != nil {
			return nil, storageFault("count deliveries", err)
		}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rejections WHERE kind = ?", kind.String()).Scan(&rejected); err != nil {
			return nil, storageFault("count rejections", err)
		}
		out[kind] = KindCount{Stored: stored, Delivered: delivered, Rejected: rejected}
	}
	return out, nil
}
