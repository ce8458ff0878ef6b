// Package catalog persists the series/season/episode/subtitle records the
// ingestion pipeline reconciles against, backed by SQLite.
//
// The store owns the (season, order) uniqueness contract for episodes and
// the processing/ready/failed lifecycle column the reconciler drives. All
// artifact paths stored here are relative to the static root.
package catalog
