package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// StatusError is returned when the cloud answers with a failure status,
// either on the HTTP level or inside the OCS envelope.
type StatusError struct {
	HTTPStatus int
	OCSStatus  int
	Message    string
}

func (e *StatusError) Error() string {
	if e.OCSStatus != 0 {
		return fmt.Sprintf("request failed with status %d (ocs %d): %s", e.HTTPStatus, e.OCSStatus, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.HTTPStatus, e.Message)
}

// NotFound reports whether the error means the addressed resource does not
// exist. OCS v1 routes report this as HTTP 200 with status code 998.
func (e *StatusError) NotFound() bool {
	return e.HTTPStatus == http.StatusNotFound || e.OCSStatus == http.StatusNotFound || e.OCSStatus == 998
}

// IsNotFound reports whether err carries a not-found StatusError.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.NotFound()
}

// DoOCS sends an OCS API request and decodes the "ocs.data" member of the
// reply into out. Parameters travel in the query string for GET and DELETE
// and form-encoded in the body otherwise.
func (c *httpClientWrapper) DoOCS(ctx context.Context, method string, urlStr string, params url.Values, out any) error {
	req := outgoing{
		method: method,
		path:   urlStr,
		header: http.Header{
			"Ocs-Apirequest": {"true"},
			"Accept":         {"application/json"},
		},
	}
	if method == http.MethodGet || method == http.MethodDelete {
		req.query = params
	} else if len(params) > 0 {
		req.body = strings.NewReader(params.Encode())
		req.header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}

	meta := gjson.GetBytes(resp.body, "ocs.meta")
	if !meta.Exists() {
		if resp.status >= http.StatusBadRequest {
			return &StatusError{HTTPStatus: resp.status, Message: resp.statusLine}
		}
		return fmt.Errorf("response from %s is not an OCS envelope", resp.url.Path)
	}

	ocsStatus := int(meta.Get("statuscode").Int())
	if resp.status >= http.StatusBadRequest || (ocsStatus != 100 && ocsStatus != http.StatusOK) {
		c.logger.Debug("OCS request rejected",
			"url", urlStr,
			"status_code", resp.status,
			"ocs_status", ocsStatus)
		return &StatusError{
			HTTPStatus: resp.status,
			OCSStatus:  ocsStatus,
			Message:    meta.Get("message").String(),
		}
	}

	if out == nil {
		return nil
	}
	data := gjson.GetBytes(resp.body, "ocs.data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return fmt.Errorf("failed to decode OCS data of %s: %w", urlStr, err)
	}
	return nil
}
