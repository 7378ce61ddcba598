package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"go-student-batch/internal/logger"
	"go-student-batch/internal/model"
	"go-student-batch/pkg/batch"
	"go-student-batch/pkg/utils"
)

// Column order of the student CSV.
const (
	colID = iota
	colName
	colEmail
	colAge
)

// StudentReader streams students from a CSV file or an http(s) URL. The
// first line is a header and is skipped. Every later physical line is one
// student: quotes never span lines, a blank line is a student with empty
// fields, and lines may carry fewer or more than four fields (missing ones
// are empty, extra ones are ignored).
type StudentReader struct {
	source string
	log    *logger.Logger
	client *http.Client

	mu    sync.Mutex
	body  io.ReadCloser
	lines *bufio.Reader
	read  int
}

var (
	_ batch.ItemReader[model.Student] = (*StudentReader)(nil)
	_ batch.ItemStream                = (*StudentReader)(nil)
)

func NewStudentReader(source string, log *logger.Logger) *StudentReader {
	return &StudentReader{
		source: source,
		log:    log.WithComponent("ingest"),
		client: http.DefaultClient,
	}
}

// Open opens the source and consumes the header line.
func (r *StudentReader) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, err := r.openSource(ctx)
	if err != nil {
		return err
	}
	r.body = body
	r.read = 0
	r.lines = bufio.NewReader(body)

	if _, err := r.readLine(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	r.log.Info("reading students", map[string]interface{}{"source": r.source})
	return nil
}

func (r *StudentReader) openSource(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(r.source, "http://") || strings.HasPrefix(r.source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to GET CSV: %w", err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to GET CSV: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to GET CSV: status %s", resp.Status)
		}
		return resp.Body, nil
	}

	file, err := os.Open(r.source)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	return file, nil
}

// Read returns the next student, or io.EOF after the last line.
func (r *StudentReader) Read(ctx context.Context) (model.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lines == nil {
		return model.Student{}, errors.New("student reader is not open")
	}
	if err := ctx.Err(); err != nil {
		return model.Student{}, err
	}
	line, err := r.readLine()
	if errors.Is(err, io.EOF) {
		return model.Student{}, io.EOF
	}
	if err != nil {
		return model.Student{}, fmt.Errorf("CSV read error: %w", err)
	}
	r.read++
	return toStudent(tokenize(line)), nil
}

// readLine returns the next physical line without its terminator. A final
// line without a newline is returned before io.EOF.
func (r *StudentReader) readLine() (string, error) {
	line, err := r.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// tokenize splits one line on commas, honouring quotes within the line.
func tokenize(line string) []string {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	// With lazy quotes and a free field count, Read only fails on an empty
	// line, which yields no fields.
	record, _ := cr.Read()
	return record
}

// Close releases the source.
func (r *StudentReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.body == nil {
		return nil
	}
	r.log.Info("CSV ingestion done", map[string]interface{}{
		"source":  r.source,
		"records": r.read,
	})
	err := r.body.Close()
	r.body, r.lines = nil, nil
	return err
}

func toStudent(record []string) model.Student {
	s := model.Student{
		Name:  utils.Field(record, colName),
		Email: utils.Field(record, colEmail),
		Age:   utils.Field(record, colAge),
	}
	if id, ok := utils.ParseInt64(utils.Field(record, colID)); ok {
		s.ID = id
	}
	return s
}
