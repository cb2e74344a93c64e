package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/homestack/backend/internal/models"
)

// ledgerHeader is the fixed column layout of the audit file.
var ledgerHeader = []string{"name", "quantity", "dateAdded", "address", "dateDeleted", "deletionDates"}

// CSVLedger is an append-only audit log of item snapshots, one CSV row per
// recorded event. The file is opened once and kept open until Close; every
// append is flushed so rows survive a crash.
type CSVLedger struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// OpenCSVLedger opens (or creates) the ledger file at path, writing the
// header row if the file is new or empty.
func OpenCSVLedger(path string) (*CSVLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	ledger := &CSVLedger{
		file:   file,
		writer: csv.NewWriter(file),
	}

	if info.Size() == 0 {
		if err := ledger.writer.Write(ledgerHeader); err != nil {
			file.Close()
			return nil, err
		}
		ledger.writer.Flush()
		if err := ledger.writer.Error(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return ledger, nil
}

// Append writes one snapshot row. Timestamps are RFC3339; the deletion
// history is semicolon-joined into a single field.
func (l *CSVLedger) Append(snapshot models.ItemSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dateDeleted := ""
	if snapshot.DateDeleted != nil {
		dateDeleted = snapshot.DateDeleted.Format(time.RFC3339)
	}

	deletionDates := make([]string, 0, len(snapshot.DeletionDates))
	for _, d := range snapshot.DeletionDates {
		deletionDates = append(deletionDates, d.Format(time.RFC3339))
	}

	record := []string{
		snapshot.Name,
		strconv.Itoa(snapshot.Quantity),
		snapshot.DateAdded.Format(time.RFC3339),
		snapshot.Address,
		dateDeleted,
		strings.Join(deletionDates, ";"),
	}

	if err := l.writer.Write(record); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

// Close flushes buffered rows and closes the underlying file.
func (l *CSVLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
