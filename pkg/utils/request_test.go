package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFieldsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customerName":" Sam ","karaokeId":6,"djOnly":true,"message":null}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	fields, err := ReadFields(req)
	require.NoError(t, err)

	assert.Equal(t, "Sam", fields.Get("customerName"))
	assert.Equal(t, "6", fields.Get("karaokeId"))
	assert.True(t, fields.Bool("djOnly"))
	assert.Equal(t, "", fields.Get("message"))
}

func TestReadFieldsForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("customerName=Ana&message=hi+there&djOnly=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	fields, err := ReadFields(req)
	require.NoError(t, err)

	assert.Equal(t, "Ana", fields.Get("customerName"))
	assert.Equal(t, "hi there", fields.Get("message"))
	assert.True(t, fields.Bool("djOnly"))
	assert.False(t, fields.Bool("missing"))
}

func TestReadFieldsRejectsBadJSON(t *testing.T) {
	for _, body := range []string{`{"customerName":`, `{"song":{"id":1}}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		_, err := ReadFields(req)
		require.ErrorIs(t, err, ErrInvalidBody, body)
	}
}
