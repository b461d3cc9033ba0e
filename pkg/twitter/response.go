package twitter

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/weiland/HourlyImage/pkg/utils/errors"
)

// maxErrorBody bounds how much of an unexpected body is kept on a StatusError.
const maxErrorBody = 512

// decodeResponse classifies a completed exchange. 400 and 401 carry an error list
// and become TypeAPI errors; any other non-2xx status and an undecodable success
// body become TypeTransport errors.
func decodeResponse(status int, body []byte) (*JSONResponse, error) {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		apiErr := &APIError{StatusCode: status}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			apiErr.Errors = errResp.Errors
		}
		return nil, errors.New(errors.TypeAPI, "request rejected", apiErr)

	case status < 200 || status > 299:
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, errors.Transport("request failed", &StatusError{StatusCode: status, Body: string(snippet)})
	}

	var resp JSONResponse
	if len(bytes.TrimSpace(body)) == 0 {
		return &resp, nil
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Transport("decode response", err)
	}
	return &resp, nil
}
