// Package config loads run options from CUE.
//
// An options file is a CUE struct unified with the embedded #Options
// schema (schema.cue). The schema carries the defaults and bounds, and is
// closed, so a misspelled field is an error rather than a silent default.
//
//	frame_rate: 60
//	turbo:      true
//
// Errors are returned as *ConfigError with the CUE position of the
// offending value.
package config
