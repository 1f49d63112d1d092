package models

import (
	"errors"
	"fmt"
)

// ConfigurationError is fatal and aborts a run before any crawling starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// EntryUnreachableError is fatal for one source's run: the entry point (or a
// flat-topology listing) could not be crawled. Other sources are unaffected.
type EntryUnreachableError struct {
	Source string
	URL    string
	Err    error
}

func (e *EntryUnreachableError) Error() string {
	return fmt.Sprintf("source %s: entry unreachable at %s: %v", e.Source, e.URL, e.Err)
}

func (e *EntryUnreachableError) Unwrap() error { return e.Err }

// FetchError is a transient page-fetch failure. It is retried with backoff;
// after the retry budget is exhausted it aborts only its own branch/listing.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizationError marks a raw record that could not be mapped to a
// canonical record. The record is dropped and counted; the run continues.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: %s: %s", e.Field, e.Reason)
}

// IsFatal reports whether err must escalate to run failure. Only
// configuration and entry-unreachable errors do; every other error kind is
// absorbed into counts and ledgers.
func IsFatal(err error) bool {
	var ce *ConfigurationError
	var ue *EntryUnreachableError
	return errors.As(err, &ce) || errors.As(err, &ue)
}
