package main

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// lineSource единственный читатель ввода. Строки читает одна горутина,
// поэтому отмененное ожидание не оставляет второго читателя на том же потоке:
// непрочитанная строка достается следующему ReadLine.
type lineSource struct {
	r     *bufio.Reader
	once  sync.Once
	lines chan string
	err   error
}

func newLineSource(r io.Reader) *lineSource {
	return &lineSource{r: bufio.NewReader(r), lines: make(chan string)}
}

func (s *lineSource) start() {
	go func() {
		defer close(s.lines)
		for {
			line, err := s.r.ReadString('\n')
			if line != "" {
				s.lines <- line
			}
			if err != nil {
				s.err = err
				return
			}
		}
	}()
}

// ReadLine ждет следующую строку вместе с '\n'. После конца ввода возвращает io.EOF.
func (s *lineSource) ReadLine(ctx context.Context) (string, error) {
	s.once.Do(s.start)
	select {
	case line, ok := <-s.lines:
		if !ok {
			if s.err != nil && s.err != io.EOF {
				return "", s.err
			}
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
