// Package rest defines the response shapes of the REST request boundary and
// the JSON row-payload decoding.
package rest

import (
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/corvusdb/corvusdb/index"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response is the JSON document returned for every REST request.
type Response struct {
	Status           int      `json:"status"`
	AffectedRowCount uint64   `json:"affectedRowCount"`
	TRIDs            []uint64 `json:"trids"`
}

// NewResponse returns a response with the given status and no affected rows.
func NewResponse(status int) *Response {
	return &Response{Status: status, TRIDs: []uint64{}}
}

// Marshal serializes the response document.
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal parses a response document.
func (r *Response) Unmarshal(data []byte) error {
	return json.Unmarshal(data, r)
}

// DecodeRows parses a REST payload: a JSON array of objects, one per row,
// mapping column names to values.
func DecodeRows(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("invalid row payload: %w", err)
	}
	return rows, nil
}

// EncodeRows serializes rows back into a REST payload.
func EncodeRows(rows []map[string]any) ([]byte, error) {
	return json.Marshal(rows)
}

// StatusForError maps an engine error onto the HTTP-shaped status carried in
// REST responses.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, index.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, index.ErrFileCorrupted),
		errors.Is(err, index.ErrNodeCorrupted),
		errors.Is(err, index.ErrMissingRoot),
		errors.Is(err, index.ErrMissingNode):
		return http.StatusInternalServerError
	default:
		var ioErr *index.IOError
		if errors.As(err, &ioErr) {
			return http.StatusInternalServerError
		}
		return http.StatusBadRequest
	}
}
