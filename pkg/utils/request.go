package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

const maxFormBytes = 64 << 10

// ErrInvalidBody 表示请求体既不是合法 JSON 也不是合法表单。
var ErrInvalidBody = errors.New("invalid request body")

// Fields 是提交表单的扁平字段集合。
type Fields map[string]string

// Get 返回去掉首尾空白后的字段值。
func (f Fields) Get(key string) string {
	return strings.TrimSpace(f[key])
}

// Bool 把 true/1/on 视为真，其余为假。
func (f Fields) Bool(key string) bool {
	switch strings.ToLower(f.Get(key)) {
	case "true", "1", "on":
		return true
	default:
		return false
	}
}

// ReadFields 同时接受 application/json 与 urlencoded 表单。
// JSON 中的数字与布尔值会被转成字符串。
func ReadFields(r *http.Request) (Fields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return readJSONFields(io.LimitReader(r.Body, maxFormBytes))
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	fields := make(Fields, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, nil
}

func readJSONFields(body io.Reader) (Fields, error) {
	var raw map[string]any
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	fields := make(Fields, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			fields[key] = v
		case json.Number:
			fields[key] = v.String()
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("%w: field %q must be a scalar", ErrInvalidBody, key)
		}
	}
	return fields, nil
}
