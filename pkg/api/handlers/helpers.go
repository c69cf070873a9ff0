package handlers

import (
	"errors"
	"net/http"

	"github.com/marmos91/bufferdb/pkg/db"
)

// Registry is the read side of the database registry.
type Registry interface {
	Get(name string) (*db.Db, error)
	Names() []string
	Len() int
}

// DatabaseName maps an org and bucket pair to the database storing it.
func DatabaseName(org, bucket string) string {
	return org + "_" + bucket
}

// databaseFromQuery resolves the org and bucket query parameters.
// Returns nil and false after writing 400 or 404.
func databaseFromQuery(w http.ResponseWriter, r *http.Request, reg Registry) (*db.Db, bool) {
	q := r.URL.Query()
	org, bucket := q.Get("org"), q.Get("bucket")
	if org == "" || bucket == "" {
		BadRequest(w, "org and bucket are required")
		return nil, false
	}
	return getDatabaseOrError(w, reg, DatabaseName(org, bucket))
}

// getDatabaseOrError fetches a database and handles common errors.
// Returns nil and false if the database does not exist (writes 404).
func getDatabaseOrError(w http.ResponseWriter, reg Registry, name string) (*db.Db, bool) {
	d, err := reg.Get(name)
	if err != nil {
		if errors.Is(err, db.ErrDatabaseNotFound) {
			NotFound(w, "database not found: "+name)
			return nil, false
		}
		InternalServerError(w, "failed to get database")
		return nil, false
	}
	return d, true
}
