// Package api holds the response envelope shared by every handler.
package api

import (
	"encoding/json"
	"net/http"
)

// Response is the wire envelope. Success responses carry Data (and sometimes
// Message); error responses carry Error. RetryAfter is set only on 429s.
type Response struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusCreated, Response{Success: true, Data: data, Message: message})
}

func Message(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, Response{Success: true, Message: message})
}

func Fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Response{Success: false, Error: msg})
}

// RateLimited writes the 429 envelope with the window reset in seconds.
func RateLimited(w http.ResponseWriter, msg string, retryAfter int) {
	JSON(w, http.StatusTooManyRequests, Response{
		Success:    false,
		Error:      msg,
		RetryAfter: retryAfter,
	})
}
