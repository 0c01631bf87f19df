package logging

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

var (
	_ roachtx.Logger = (*ConsoleLogger)(nil)
	_ roachtx.Logger = (*NullLogger)(nil)
)

func TestConsoleLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		log     func(l *ConsoleLogger)
		want    string
	}{
		{
			name:    "verbose enabled",
			verbose: true,
			log:     func(l *ConsoleLogger) { l.Verbose("attempt %d", 2) },
			want:    "[VERBOSE] attempt 2\n",
		},
		{
			name: "verbose disabled",
			log:  func(l *ConsoleLogger) { l.Verbose("attempt %d", 2) },
			want: "",
		},
		{
			name: "info",
			log:  func(l *ConsoleLogger) { l.Info("transferred %d", 100) },
			want: "transferred 100\n",
		},
		{
			name: "error",
			log:  func(l *ConsoleLogger) { l.Error("release failed: %v", "boom") },
			want: "[ERROR] release failed: boom\n",
		},
		{
			name: "no args keeps percent signs",
			log:  func(l *ConsoleLogger) { l.Info("100% done") },
			want: "100% done\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewWriterLogger(&buf, tt.verbose))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestConsoleLogger_WithPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, true)

	worker := base.WithPrefix("[worker 3] ")
	worker.Info("started")
	worker.Verbose("retrying")
	base.Info("plain")

	assert.Equal(t, "[worker 3] started\n[VERBOSE] [worker 3] retrying\nplain\n", buf.String())
}

func TestConsoleLogger_ConcurrentSafety(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, true)

	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := base.WithPrefix(fmt.Sprintf("[worker %d] ", id))
			l.Info("message %d", id)
			l.Verbose("verbose %d", id)
			l.Error("error %d", id)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, goroutines*3)
	for _, line := range lines {
		assert.Contains(t, line, "[worker ")
	}
}

func TestNullLogger_ConcurrentSafety(t *testing.T) {
	logger := NewNullLogger()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger.Info("message %d", id)
			logger.Verbose("verbose %d", id)
			logger.Error("error %d", id)
		}(i)
	}
	wg.Wait()
}

func BenchmarkConsoleLogger_VerboseDisabled(b *testing.B) {
	logger := NewWriterLogger(&bytes.Buffer{}, false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Verbose("benchmark message %d", i)
	}
}

func ExampleConsoleLogger_WithPrefix() {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, false).WithPrefix("[worker 1] ")
	logger.Info("transfer committed")
	logger.Verbose("hidden")
	fmt.Print(buf.String())
	// Output:
	// [worker 1] transfer committed
}
