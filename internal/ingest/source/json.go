package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
)

type jsonMode int

const (
	jsonModeUnknown jsonMode = iota
	jsonModeArray
	jsonModeStream
	jsonModeDone
)

// JSONSource decodes records incrementally from either a single JSON array
// or newline-delimited JSON objects. null elements are skipped. Only one
// record is held in memory at a time.
type JSONSource struct {
	br   *bufio.Reader
	dec  *json.Decoder
	mode jsonMode
	read int64
}

func NewJSONSource(r io.Reader) *JSONSource {
	br := bufio.NewReaderSize(r, 64*1024)
	return &JSONSource{br: br, dec: json.NewDecoder(br)}
}

// Records reports how many non-null elements have been decoded.
func (s *JSONSource) Records() int64 { return s.read }

func (s *JSONSource) Next(ctx context.Context) (ingestdomain.Record, error) {
	if err := ctx.Err(); err != nil {
		return ingestdomain.Record{}, err
	}
	if s.mode == jsonModeUnknown {
		if err := s.detect(); err != nil {
			return ingestdomain.Record{}, err
		}
	}

	for {
		switch s.mode {
		case jsonModeDone:
			return ingestdomain.Record{}, io.EOF
		case jsonModeArray:
			if !s.dec.More() {
				if _, err := s.dec.Token(); err != nil {
					if errors.Is(err, io.EOF) {
						err = io.ErrUnexpectedEOF
					}
					return ingestdomain.Record{}, fmt.Errorf("unterminated array after record %d: %w", s.read, err)
				}
				s.mode = jsonModeDone
				return ingestdomain.Record{}, io.EOF
			}
		case jsonModeStream:
			if !s.dec.More() {
				s.mode = jsonModeDone
				return ingestdomain.Record{}, io.EOF
			}
		}

		var rec *ingestdomain.Record
		if err := s.dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return ingestdomain.Record{}, fmt.Errorf("record %d: %w", s.read+1, err)
		}
		if rec == nil {
			continue
		}
		s.read++
		return *rec, nil
	}
}

func (s *JSONSource) detect() error {
	for {
		b, err := s.br.Peek(1)
		if errors.Is(err, io.EOF) {
			s.mode = jsonModeDone
			return nil
		}
		if err != nil {
			return err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = s.br.ReadByte()
			continue
		case 0xEF:
			bom, err := s.br.Peek(3)
			if err == nil && bom[1] == 0xBB && bom[2] == 0xBF {
				_, _ = s.br.Discard(3)
				continue
			}
			s.mode = jsonModeStream
			return nil
		case '[':
			if _, err := s.dec.Token(); err != nil {
				return err
			}
			s.mode = jsonModeArray
			return nil
		default:
			s.mode = jsonModeStream
			return nil
		}
	}
}

var _ ingestdomain.RecordSource = (*JSONSource)(nil)
