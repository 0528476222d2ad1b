package hooks

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// CallbackURL is the URL the camera calls for a token.
func CallbackURL(listenURL, token string) string {
	return listenURL + "?action=" + url.QueryEscape(token)
}

// EncodeCallback returns the alias field value for a token.
func EncodeCallback(listenURL, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(CallbackURL(listenURL, token)))
}

// DecodeCallback recovers the token from an alias field value as returned by
// the camera (percent-encoded base64). ok is false when the field is empty,
// undecodable, or points anywhere other than listenURL.
func DecodeCallback(listenURL, value string) (token string, ok bool) {
	if value == "" {
		return "", false
	}
	// PathUnescape keeps '+' which is part of the base64 alphabet.
	unescaped, err := url.PathUnescape(value)
	if err != nil {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return "", false
	}

	query, found := strings.CutPrefix(string(raw), listenURL+"?")
	if !found {
		return "", false
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", false
	}
	token = values.Get("action")
	return token, token != ""
}
