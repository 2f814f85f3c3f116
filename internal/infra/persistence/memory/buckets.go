package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bucket names used by the table backends, one row per collection plus a
// meta row carrying the schema version.
const (
	BucketPatients      = "patients"
	BucketDoctors       = "doctors"
	BucketAppointments  = "appointments"
	BucketNotes         = "medical_notes"
	BucketPrescriptions = "prescriptions"
	BucketInvoices      = "invoices"
	BucketUsers         = "users"
	BucketMeta          = "meta"
)

// Buckets lists every bucket in write order.
var Buckets = []string{
	BucketPatients,
	BucketDoctors,
	BucketAppointments,
	BucketNotes,
	BucketPrescriptions,
	BucketInvoices,
	BucketUsers,
	BucketMeta,
}

// CorruptTablePrefix starts the name of every table the SQL backends copy
// unreadable state rows into.
const CorruptTablePrefix = "state_corrupt_"

// CorruptTable names the quarantine table for rows found unreadable at now,
// e.g. state_corrupt_20240115t090000z.
func CorruptTable(now time.Time) string {
	return CorruptTablePrefix + strings.ToLower(now.UTC().Format("20060102T150405Z"))
}

type bucketMeta struct {
	SchemaVersion int `json:"schema_version"`
}

func (d *Document) bucketTargets() map[string]any {
	return map[string]any{
		BucketPatients:      &d.Patients,
		BucketDoctors:       &d.Doctors,
		BucketAppointments:  &d.Appointments,
		BucketNotes:         &d.Notes,
		BucketPrescriptions: &d.Prescriptions,
		BucketInvoices:      &d.Invoices,
		BucketUsers:         &d.Users,
	}
}

// EncodeBuckets splits the document into one JSON payload per bucket.
func EncodeBuckets(doc Document) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for bucket, target := range doc.bucketTargets() {
		data, err := json.Marshal(target)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	meta, err := json.Marshal(bucketMeta{SchemaVersion: doc.SchemaVersion})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketMeta, err)
	}
	out[BucketMeta] = meta
	return out, nil
}

// DecodeBuckets rebuilds and migrates a document from bucket payloads.
// Unknown buckets are ignored and missing ones are backfilled.
func DecodeBuckets(payloads map[string][]byte) (Document, error) {
	var doc Document
	targets := doc.bucketTargets()
	for bucket, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		if bucket == BucketMeta {
			var meta bucketMeta
			if err := json.Unmarshal(payload, &meta); err != nil {
				return Document{}, fmt.Errorf("decode %s: %w", bucket, err)
			}
			doc.SchemaVersion = meta.SchemaVersion
			continue
		}
		target, ok := targets[bucket]
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return Document{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	return MigrateDocument(doc)
}
