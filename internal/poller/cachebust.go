package poller

import (
	"strconv"
	"strings"
)

// tokenParam is the query parameter carrying the attempt token.
const tokenParam = "t"

// DisplayURL appends the attempt token to baseURL so that every attempt is a
// distinct resource to HTTP and browser caches. The base is not parsed or
// normalised: cameras are picky about their query strings.
func DisplayURL(baseURL string, token int64) string {
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + tokenParam + "=" + strconv.FormatInt(token, 10)
}
