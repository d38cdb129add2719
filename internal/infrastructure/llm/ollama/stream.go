package ollama

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// generateStream adapts the NDJSON /api/generate stream to a token channel.
type generateStream struct {
	tokens    chan string
	err       error
	done      chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

func newGenerateStream(body io.ReadCloser) *generateStream {
	s := &generateStream{
		tokens: make(chan string, 16),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}
	go s.consume(body)
	return s
}

func (s *generateStream) Tokens() <-chan string { return s.tokens }

// Err is valid once Tokens is closed.
func (s *generateStream) Err() error {
	<-s.done
	return s.err
}

// Close releases the consumer goroutine when the caller abandons the stream
// before reading every token.
func (s *generateStream) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

func (s *generateStream) consume(body io.ReadCloser) {
	defer close(s.done)
	defer close(s.tokens)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			s.err = fmt.Errorf("decode stream chunk: %w", err)
			return
		}
		if chunk.Error != "" {
			s.err = fmt.Errorf("ollama stream: %s", chunk.Error)
			return
		}
		if chunk.Response != "" {
			select {
			case s.tokens <- chunk.Response:
			case <-s.quit:
				return
			}
		}
		if chunk.Done {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.err = fmt.Errorf("read stream: %w", err)
	}
}
