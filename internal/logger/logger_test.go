package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Info("[Test] hello %d", 1)
	Warn("[Test] careful")
	Error("[Test] broken: %v", "boom")

	out := buf.String()
	assert.Contains(t, out, "INFO  [Test] hello 1")
	assert.Contains(t, out, "WARN  [Test] careful")
	assert.Contains(t, out, "ERROR [Test] broken: boom")
}

func TestDebugDisabledByDefault(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetDebug(false)
	})

	Debug("[Test] hidden")
	assert.Empty(t, buf.String())

	SetDebug(true)
	Debug("[Test] shown")
	assert.Contains(t, buf.String(), "DEBUG [Test] shown")
}
