package rest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvusdb/index"
)

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{Status: 201, AffectedRowCount: 1, TRIDs: []uint64{1}}
	data, err := resp.Marshal()
	require.NoError(t, err)
	require.JSONEq(t, `{"status":201,"affectedRowCount":1,"trids":[1]}`, string(data))

	var decoded Response
	require.NoError(t, decoded.Unmarshal(data))
	require.Equal(t, *resp, decoded)
}

func TestEmptyResponseShape(t *testing.T) {
	resp := NewResponse(404)
	data, err := resp.Marshal()
	require.NoError(t, err)
	require.JSONEq(t, `{"status":404,"affectedRowCount":0,"trids":[]}`, string(data))
}

func TestDecodeRows(t *testing.T) {
	rows, err := DecodeRows([]byte(`[{"a":-2,"b":"hello world!!!","c":33.0,"d":true,"e":null}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, -2, rows[0]["a"])
	require.Equal(t, "hello world!!!", rows[0]["b"])
	require.EqualValues(t, 33.0, rows[0]["c"])
	require.Equal(t, true, rows[0]["d"])
	require.Nil(t, rows[0]["e"])

	_, err = DecodeRows([]byte(`{"not":"an array"}`))
	require.Error(t, err)
}

func TestStatusForError(t *testing.T) {
	require.Equal(t, http.StatusOK, StatusForError(nil))
	require.Equal(t, http.StatusNotImplemented, StatusForError(index.ErrNotImplemented))
	require.Equal(t, http.StatusInternalServerError, StatusForError(index.ErrFileCorrupted))
	require.Equal(t, http.StatusInternalServerError, StatusForError(&index.IOError{Op: "read"}))
}
