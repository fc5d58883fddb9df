package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/nr-bulk-delete/internal/deleter"
)

func TestHandlePanic(t *testing.T) {
	var buf bytes.Buffer
	var exitCode = -1
	stderr = &buf
	osExit = func(code int) { exitCode = code }
	defer func() {
		stderr = os.Stderr
		osExit = os.Exit
	}()

	func() {
		defer handlePanic()
		panic("boom")
	}()

	assert.Equal(t, deleter.ExitError, exitCode)
	assert.Contains(t, buf.String(), "panic: boom")
	assert.Contains(t, buf.String(), "goroutine")
}

func TestHandlePanic_NoPanic(t *testing.T) {
	called := false
	osExit = func(int) { called = true }
	defer func() { osExit = os.Exit }()

	func() {
		defer handlePanic()
	}()

	assert.False(t, called)
}
