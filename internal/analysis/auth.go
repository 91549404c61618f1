package analysis

import (
	"errors"
	"net/http"
	"strings"
)

var authPhrases = []string{
	"api key not valid",
	"invalid api key",
	"invalid x-api-key",
	"authentication failed",
	"authentication_error",
	"unauthorized",
}

type httpStatuser interface {
	HTTPStatus() int
}

// IsAuthFailure reports whether err looks like a rejected credential.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	var hs httpStatuser
	if errors.As(err, &hs) {
		switch hs.HTTPStatus() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range authPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
