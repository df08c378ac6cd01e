package route

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tkingovr/viewfilter/internal/filter"
)

// writeResponse encodes resp onto w. Strings are written as HTML, byte
// slices as-is, and any other body as JSON. An absent response is 204.
func writeResponse(w http.ResponseWriter, resp *filter.Response) error {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	var data []byte
	contentType := ""
	switch b := resp.Body.(type) {
	case nil:
	case string:
		data = []byte(b)
		contentType = "text/html; charset=utf-8"
	case []byte:
		data = b
	default:
		var err error
		data, err = json.Marshal(b)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return fmt.Errorf("encoding response body: %w", err)
		}
		contentType = "application/json"
	}

	h := w.Header()
	for k, v := range resp.Header {
		h[k] = v
	}
	if contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
	w.WriteHeader(resp.StatusCode())
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}
