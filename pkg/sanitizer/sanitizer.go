// Package sanitizer normalizes free-text input before validation and storage.
// It strips control characters and collapses whitespace; it never tries to be
// an HTML or markup filter.
package sanitizer
