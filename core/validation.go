package core

import (
	"fmt"
	"net/mail"
	"net/url"
	"unicode/utf8"
)

// ValidateEmail checks that email parses as an RFC 5322 address.
func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateWebhookURL checks that the tenant-supplied callback URL has an
// http or https scheme and a host, matching spec.md §4.1's "validates URL
// scheme is http/https".
func ValidateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook_url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook_url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("webhook_url must include a host")
	}
	return nil
}

const (
	minTextLength      = 1
	maxTextLength      = 10000
	maxCommentIDLength = 255
	minPasswordLength  = 8
)

func validateSubmitText(text string) error {
	n := utf8.RuneCountInString(text)
	if n < minTextLength || n > maxTextLength {
		return fmt.Errorf("text must be between %d and %d characters", minTextLength, maxTextLength)
	}
	return nil
}

func validateCommentID(commentID string) error {
	if utf8.RuneCountInString(commentID) > maxCommentIDLength {
		return fmt.Errorf("comment_id must be at most %d characters", maxCommentIDLength)
	}
	return nil
}
