// Copyright © 2024 The ELPS authors

// Package varobjtest provides fixtures shared by the test suites: a sample
// debuggee image and loggers that write to the test log.
package varobjtest

import (
	"bytes"
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luthersystems/varobj/target"
)

//go:embed sample.yaml
var sampleImage []byte

// SampleImage returns the raw YAML of the sample debuggee.
func SampleImage() []byte {
	return append([]byte(nil), sampleImage...)
}

// NewTarget loads a fresh copy of the sample debuggee.
func NewTarget(t testing.TB) *target.Target {
	tgt, err := target.Load(bytes.NewReader(sampleImage))
	require.NoError(t, err)
	return tgt
}
