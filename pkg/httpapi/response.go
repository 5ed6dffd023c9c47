// Package httpapi is the control plane's HTTP surface: the realtime
// SSE feed, analysis history lookup, the analysis health check, and the
// debug endpoints, all mounted on one chi router.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	plogerrors "github.com/team-Plog/plog-sub000/pkg/shared/errors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err's Kind to a status code per the control plane's
// propagation policy: NotFound -> 404, UpstreamInvalid -> 400, everything
// else -> 500 with a generic message.
func writeError(w http.ResponseWriter, log *logrus.Logger, operation string, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch plogerrors.KindOf(err) {
	case plogerrors.KindNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case plogerrors.KindUpstreamInvalid:
		status = http.StatusBadRequest
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("operation", operation).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": message})
}
