package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	tfe "github.com/hashicorp/go-tfe"
)

type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.message())
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *APIError) message() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// classify wraps err with the status the service answered with, if any.
func classify(err error, status int) error {
	if err == nil {
		return nil
	}
	switch {
	case status >= 400:
	case errors.Is(err, tfe.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, tfe.ErrResourceNotFound):
		status = http.StatusNotFound
	default:
		return err
	}
	return &APIError{StatusCode: status, Message: err.Error(), Err: err}
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if apiErr := asAPIError(err); apiErr != nil {
		return apiErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound || errors.Is(err, tfe.ErrResourceNotFound)
}

func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized || errors.Is(err, tfe.ErrUnauthorized)
}

// IsTransient reports failures worth retrying: 5xx, 429, timeouts and
// connections that were refused or dropped. Certificate, scheme and URL
// errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if code := StatusCode(err); code != 0 {
		return code >= 500 || code == http.StatusTooManyRequests
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return errors.Is(urlErr.Err, io.EOF) || errors.Is(urlErr.Err, io.ErrUnexpectedEOF)
	}
	return false
}

// Describe turns an error into the sentence shown to users.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case IsUnauthorized(err):
		return "the API token is invalid or expired; run `tfcview auth login` to sign in again"
	case errors.Is(err, ErrNoToken):
		return ErrNoToken.Error()
	}
	if apiErr := asAPIError(err); apiErr != nil {
		return apiErr.message() + " (" + strconv.Itoa(apiErr.StatusCode) + ")"
	}
	return err.Error()
}
