// Package model defines the shared domain types: biometric types, records,
// and match candidates.
package model
