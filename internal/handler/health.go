package handler

import (
	"net/http"
)

// HandleHealth responds 200 with a JSON body indicating the server is up.
// It deliberately does not touch the database; connectivity is reported
// by the /test routes.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// HandleVersion reports the deployed image tag.
func HandleVersion(imageTag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"IMAGE_TAG": imageTag})
	}
}
