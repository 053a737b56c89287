package client

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// Decoding selects how a response body is converted to a result if no result type is defined by HTTPRequest.WithResult.
type Decoding int

const (
	// DecodeByContentType decodes JSON media types to a JSON value, "text/*" to a string, and anything else to []byte.
	DecodeByContentType Decoding = iota
	// DecodeJSON always decodes the body as JSON.
	DecodeJSON
)

func (d Decoding) String() string {
	switch d {
	case DecodeByContentType:
		return "by content type"
	case DecodeJSON:
		return "json"
	default:
		return fmt.Sprintf("Decoding(%d)", int(d))
	}
}

// decodeBody wraps the body by a decoder according to the Content-Encoding header.
func decodeBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		if v, err := gzip.NewReader(body); err == nil {
			return v, nil
		} else {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	default:
		return body, nil
	}
}

// readResult reads the response body to the result.
// The first returned error is a read error, the second one is a decode error.
func readResult(res *http.Response, reqDef HTTPRequest) (result any, readErr error, decodeErr error) {
	if res.StatusCode == http.StatusNoContent || res.Body == nil || res.Body == http.NoBody {
		return emptyResult(reqDef.ResultDef()), nil, nil
	}

	body, err := decodeBody(res.Body, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, nil, err
	}

	// Stream response to io.Writer
	resultDef := reqDef.ResultDef()
	if w, ok := resultDef.(io.Writer); ok {
		if _, err := io.Copy(w, body); err != nil {
			return nil, fmt.Errorf(`cannot read response body: %w`, err), nil
		}
		if c, ok := resultDef.(io.WriteCloser); ok {
			if err := c.Close(); err != nil {
				return nil, fmt.Errorf(`cannot read response body: %w`, err), nil
			}
		}
		return resultDef, nil, nil
	}

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf(`cannot read response body: %w`, err), nil
	}

	result, err = decodeResult(bodyBytes, res.Header.Get("Content-Type"), reqDef.Decoding(), resultDef)
	return result, nil, err
}

// decodeResult converts the body to the resultDef if it is set,
// otherwise to a dynamic value according to the decoding.
func decodeResult(body []byte, contentType string, decoding Decoding, resultDef any) (any, error) {
	switch v := resultDef.(type) {
	case *[]byte:
		*v = body
		return v, nil
	case *string:
		*v = string(body)
		return v, nil
	case nil:
		// dynamic value, see below
	default:
		if len(bytes.TrimSpace(body)) == 0 {
			return resultDef, nil
		}
		if err := json.Unmarshal(body, resultDef); err != nil {
			return nil, fmt.Errorf(`cannot decode JSON result: %w`, err)
		}
		return resultDef, nil
	}

	if len(body) == 0 {
		return nil, nil
	}

	switch {
	case decoding == DecodeJSON || isJSONContentType(contentType):
		var out any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf(`cannot decode JSON result: %w`, err)
		}
		return out, nil
	case isTextContentType(contentType):
		return string(body), nil
	default:
		return body, nil
	}
}

func emptyResult(resultDef any) any {
	if _, ok := resultDef.(io.Writer); ok {
		return resultDef
	}
	switch v := resultDef.(type) {
	case nil:
		return nil
	case *[]byte:
		*v = []byte{}
		return v
	case *string:
		*v = ""
		return v
	default:
		return resultDef
	}
}
