// Package ingest defines the core types and ports shared by the article
// ingestion pipeline: raw source entries, normalized destination records and
// the small interfaces the coordinator uses to reach sources and destinations.
package ingest
