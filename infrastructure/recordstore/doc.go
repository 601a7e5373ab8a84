// Package recordstore provides ports.RecordStore backends: an in-process map,
// a YAML document on disk, and a bbolt database.
package recordstore
