// File: cmd/vibeloop/main_test.go
package main

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("vision stage: ParseError: no JSON object found")))
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	var written string
	var exitedWith int
	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = string(data)
		return nil
	}
	osExit = func(code int) { exitedWith = code }

	func() {
		defer handlePanic()
		panic("boom")
	}()

	assert.Equal(t, 2, exitedWith)
	assert.Contains(t, written, "panic: boom")
	assert.Contains(t, written, "goroutine")
}

func TestHandlePanic_WriteFails(t *testing.T) {
	defer resetMocks()

	exited := false
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only filesystem") }
	osExit = func(int) { exited = true }

	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.True(t, exited)
}
