package console

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterLines(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Success("%s built successfully", "LDK")
	p.Failure("CRASH/ERROR")
	p.Header("Results:")
	p.Printf("[%d/%d] ", 1, 2)

	out := buf.String()
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "LDK built successfully\n")
	assert.Contains(t, out, "CRASH/ERROR\n")
	assert.Contains(t, out, "Results:")
	assert.True(t, strings.HasSuffix(out, "[1/2] "))
}

func TestBlockSkipsEmptyAndTerminatesLines(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Block("stdout text", "", "stderr text\n")
	assert.Equal(t, "stdout text\nstderr text\n", buf.String())
}

func TestBlocksDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Block(fmt.Sprintf("begin %d\n", i), fmt.Sprintf("end %d\n", i))
		}(i)
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 16)
	for i := 0; i < len(lines); i += 2 {
		assert.Equal(t, strings.TrimPrefix(lines[i], "begin"), strings.TrimPrefix(lines[i+1], "end"))
	}
}
