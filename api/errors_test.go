package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantFields map[string]string
	}{
		{
			name:   "validation errors",
			status: http.StatusBadRequest,
			body: `{"title":"One or more validation errors occurred.","errors":{
				"Ten":["Tên là bắt buộc"],
				"$.ngayVaoLam":["Ngày không hợp lệ","Sai định dạng"]}}`,
			wantMsg: "$.ngayVaoLam: Ngày không hợp lệ; Sai định dạng | Ten: Tên là bắt buộc",
			wantFields: map[string]string{
				"ngayVaoLam": "Ngày không hợp lệ; Sai định dạng",
				"ten":        "Tên là bắt buộc",
			},
		},
		{
			name:    "empty validation errors fall back to title",
			status:  http.StatusBadRequest,
			body:    `{"title":"Bad input","errors":{"Ten":[]}}`,
			wantMsg: "Bad input",
		},
		{
			name:    "message",
			status:  http.StatusConflict,
			body:    `{"message":"Email đã tồn tại"}`,
			wantMsg: "Email đã tồn tại",
		},
		{
			name:    "plain text with diagnostics",
			status:  http.StatusBadRequest,
			body:    "The JSON value could not be converted. Path: $.ngaySinh | LineNumber: 0",
			wantMsg: "The JSON value could not be converted.",
		},
		{
			name:    "json string body",
			status:  http.StatusBadRequest,
			body:    `"Không tìm thấy nhân viên"`,
			wantMsg: "Không tìm thấy nhân viên",
		},
		{
			name:    "empty body",
			status:  http.StatusNotFound,
			body:    "",
			wantMsg: "404 Not Found",
		},
		{
			name:    "unknown json",
			status:  http.StatusInternalServerError,
			body:    `{"traceId":"abc"}`,
			wantMsg: "500 Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ParseError(tt.status, []byte(tt.body))
			if e.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", e.StatusCode, tt.status)
			}
			if e.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", e.Message, tt.wantMsg)
			}
			for k, v := range tt.wantFields {
				if e.Fields[k] != v {
					t.Errorf("field %s = %q, want %q", k, e.Fields[k], v)
				}
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	nf := &Error{StatusCode: http.StatusNotFound}

	if !IsNotFound(nf) {
		t.Error("404 should be not found")
	}
	if !IsNotFound(fmt.Errorf("wrapped: %w", nf)) {
		t.Error("wrapped 404 should be not found")
	}
	if IsNotFound(&Error{StatusCode: http.StatusBadRequest}) {
		t.Error("400 is not not-found")
	}
	if IsNotFound(errors.New("plain")) || IsNotFound(nil) {
		t.Error("non-API errors are not not-found")
	}
}
