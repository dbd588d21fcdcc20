// Package storage provides the event journal interface and an in-memory
// implementation. Journals are append-only: every record gets the next
// sequence number and a unique ID, and is never modified afterwards.
package storage
