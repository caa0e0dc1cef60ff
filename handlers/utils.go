package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/keystore"
	"github.com/andrewpaige1/bookswap-api/trading"
)

type DBHandler struct {
	*gorm.DB

	Trading   *trading.Service
	Keys      *keystore.Store
	Tokens    *auth.Issuer
	Cookies   auth.Cookies
	Revoker   auth.Revoker
	Providers *auth.Providers
	Logger    *zap.Logger

	// Where OAuth logins land once the session cookie is set
	FrontendURL string
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with the error's code and message. Errors without a
// code are logged and hidden behind a 500.
func (db *DBHandler) writeError(w http.ResponseWriter, op string, err error) {
	code := errors.Code(err)
	if code >= http.StatusInternalServerError {
		db.Logger.Error(op, zap.Error(err))
	}
	http.Error(w, errors.Message(err), code)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// escapeLike escapes the LIKE wildcards of a user supplied search term
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
