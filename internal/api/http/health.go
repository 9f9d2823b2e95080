package http

import (
	"database/sql"
	"net/http"
)

// DBCheckHandler pings the database so load balancers can tell a hung
// pool from a live one.
func DBCheckHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			apiError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
