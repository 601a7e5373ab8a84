package ports

import "github.com/ast-ral/divine/domain/entities"

// RecordStore is the external key-value persistence holding artifact records.
type RecordStore interface {
	// Get returns the record stored under id. The boolean is false, with a
	// nil error, when no record exists.
	Get(id string) (entities.StoreRecord, bool, error)

	// Put replaces the record stored under id.
	Put(id string, record entities.StoreRecord) error

	// Delete removes the record stored under id. Deleting a missing record
	// is not an error.
	Delete(id string) error
}
