// submission/request.go
package submission

import (
	"errors"
	"mime"
	"net/http"
)

// ErrMissingBoundary is returned for a multipart body without a boundary.
var ErrMissingBoundary = errors.New("submission: multipart body without boundary")

// ReadRequest decodes the body of r according to its Content-Type:
// application/json, multipart/form-data, or (for anything else, including
// no Content-Type) application/x-www-form-urlencoded.
func ReadRequest(r *http.Request) (Fields, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return ParseJSON(r.Body)
	case "multipart/form-data":
		if params["boundary"] == "" {
			return nil, ErrMissingBoundary
		}
		return ParseMultipart(r.Body, params["boundary"])
	default:
		return ParseForm(r.Body)
	}
}
