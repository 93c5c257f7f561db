package server

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errWire struct {
	Error     perr.Wire `json:"error"`
	ErrorName string    `json:"error_name"`
	RequestID string    `json:"request_id,omitempty"`
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, perr.HTTPStatus(err), errWire{
		Error:     perr.WireFrom(err),
		ErrorName: perr.CodeName(perr.CodeOf(err)),
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// recoverJSON converts panics into a JSON 500 and logs the stack with the
// request id
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				reqID := chimw.GetReqID(r.Context())
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Msgf("panic recovered\n%s", debug.Stack())
				if reqID != "" {
					w.Header().Set("X-Request-ID", reqID)
				}
				writeJSON(w, http.StatusInternalServerError, errWire{
					Error:     perr.WireFrom(perr.Newf(perr.ErrorCodeUnknown, "internal error")),
					ErrorName: perr.CodeName(perr.ErrorCodeUnknown),
					RequestID: reqID,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
