package mailchimp

import (
	"errors"
	"fmt"
	"regexp"
)

// memberExistsRe matches the provider's "already a list member" error detail.
// The API reports this as a plain 400 with no machine-readable code, so the
// message text is the only discriminator available.
var memberExistsRe = regexp.MustCompile(`.+is already a list member`)

// APIError is a 4xx/5xx response from the provider, carrying the problem
// document fields the v3 API returns.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
}

// MemberExists reports whether the error is the "member already exists"
// rejection, which callers treat as a soft outcome rather than a failure.
func (e *APIError) MemberExists() bool {
	return memberExistsRe.MatchString(e.Detail) || memberExistsRe.MatchString(e.Title)
}

// TransportError is a network-level failure (DNS, connect, timeout). The
// request may or may not have reached the provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("API call to %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsMemberExists reports whether err is an APIError for an already
// subscribed member.
func IsMemberExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.MemberExists()
}

// IsNotFound reports whether err is a 404 from the provider.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
