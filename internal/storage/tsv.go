package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"emt-madrid/internal/sensor"
)

const (
	// TSVHeader defines the column headers for the TSV file.
	TSVHeader = "timestamp\tkind\tsource_id\tentity\tline\tstate\tsecondary\tdistance"

	snapshotPrefix = "readings_"
	snapshotLayout = "20060102_150405"
	tsvColumns     = 8
)

// TSVStorage handles reading and writing readings to TSV files.
type TSVStorage struct {
	dataDir string
	now     func() time.Time
}

// NewTSVStorage creates a new TSV storage instance.
func NewTSVStorage(dataDir string) *TSVStorage {
	return &TSVStorage{dataDir: dataDir, now: time.Now}
}

// WriteReadings writes readings to a timestamped TSV file.
func (s *TSVStorage) WriteReadings(_ context.Context, readings []sensor.Reading) (string, error) {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	timestamp := s.now().UTC()
	path := filepath.Join(s.dataDir, snapshotName(timestamp))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := encodeTSV(file, timestamp, readings); err != nil {
		return "", err
	}
	return path, nil
}

// ReadLatest reads the most recent TSV file.
func (s *TSVStorage) ReadLatest(_ context.Context) ([]sensor.Reading, time.Time, error) {
	files, err := s.listTSVFiles()
	if err != nil {
		return nil, time.Time{}, err
	}

	if len(files) == 0 {
		return nil, time.Time{}, ErrNoSnapshots
	}

	// Files are sorted newest first
	return s.readTSVFile(files[0])
}

// ListAvailableTimestamps returns all timestamps for which data is available.
func (s *TSVStorage) ListAvailableTimestamps(_ context.Context) ([]time.Time, error) {
	files, err := s.listTSVFiles()
	if err != nil {
		return nil, err
	}

	timestamps := make([]time.Time, 0, len(files))
	for _, file := range files {
		ts, err := parseSnapshotTimestamp(filepath.Base(file))
		if err == nil {
			timestamps = append(timestamps, ts)
		}
	}

	return timestamps, nil
}

// GetSnapshotByTimestamp returns the snapshot whose file name is closest to target.
func (s *TSVStorage) GetSnapshotByTimestamp(_ context.Context, target time.Time) ([]sensor.Reading, time.Time, error) {
	files, err := s.listTSVFiles()
	if err != nil {
		return nil, time.Time{}, err
	}

	closest, err := closestSnapshot(files, target)
	if err != nil {
		return nil, time.Time{}, err
	}
	return s.readTSVFile(closest)
}

// listTSVFiles returns TSV files sorted by timestamp (newest first).
func (s *TSVStorage) listTSVFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), snapshotPrefix) && strings.HasSuffix(entry.Name(), ".tsv") {
			files = append(files, filepath.Join(s.dataDir, entry.Name()))
		}
	}

	// The timestamp in the name sorts lexically
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	return files, nil
}

func (s *TSVStorage) readTSVFile(path string) ([]sensor.Reading, time.Time, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return decodeTSV(file)
}

func snapshotName(timestamp time.Time) string {
	return fmt.Sprintf("%s%s.tsv", snapshotPrefix, timestamp.Format(snapshotLayout))
}

// parseSnapshotTimestamp extracts the timestamp from a snapshot file name or object key.
// Key format: {prefix}readings_YYYYMMDD_HHMMSS.tsv
func parseSnapshotTimestamp(key string) (time.Time, error) {
	idx := strings.LastIndex(key, snapshotPrefix)
	if idx == -1 {
		return time.Time{}, fmt.Errorf("invalid key format: missing %q prefix", snapshotPrefix)
	}

	start := idx + len(snapshotPrefix)
	if len(key) < start+len(snapshotLayout) {
		return time.Time{}, fmt.Errorf("invalid key format: timestamp too short")
	}

	return time.Parse(snapshotLayout, key[start:start+len(snapshotLayout)])
}

// closestSnapshot picks the key whose embedded timestamp is nearest to target.
func closestSnapshot(keys []string, target time.Time) (string, error) {
	if len(keys) == 0 {
		return "", ErrNoSnapshots
	}

	var closestKey string
	closestDiff := time.Duration(1<<63 - 1)
	for _, key := range keys {
		timestamp, err := parseSnapshotTimestamp(key)
		if err != nil {
			continue
		}

		diff := timestamp.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < closestDiff {
			closestDiff = diff
			closestKey = key
		}
	}

	if closestKey == "" {
		return "", fmt.Errorf("no matching snapshot found for timestamp")
	}
	return closestKey, nil
}

func encodeTSV(w io.Writer, timestamp time.Time, readings []sensor.Reading) error {
	writer := bufio.NewWriter(w)

	if _, err := writer.WriteString(TSVHeader + "\n"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	tsStr := timestamp.Format(time.RFC3339)
	for _, r := range readings {
		line := strings.Join([]string{
			tsStr,
			r.Kind,
			r.SourceID,
			escapeTSV(r.Entity),
			escapeTSV(r.Line),
			formatOptional(r.State),
			formatOptional(r.Secondary),
			formatOptional(r.Distance),
		}, "\t") + "\n"
		if _, err := writer.WriteString(line); err != nil {
			return fmt.Errorf("failed to write reading: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

func decodeTSV(r io.Reader) ([]sensor.Reading, time.Time, error) {
	scanner := bufio.NewScanner(r)

	// Skip header
	if !scanner.Scan() {
		return nil, time.Time{}, fmt.Errorf("empty file")
	}

	var readings []sensor.Reading
	var timestamp time.Time
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < tsvColumns {
			continue
		}

		ts, err := time.Parse(time.RFC3339, fields[0])
		if err != nil {
			continue
		}
		if timestamp.IsZero() {
			timestamp = ts
		}

		readings = append(readings, sensor.Reading{
			Timestamp: ts,
			Kind:      fields[1],
			SourceID:  fields[2],
			Entity:    fields[3],
			Line:      fields[4],
			State:     parseOptional(fields[5]),
			Secondary: parseOptional(fields[6]),
			Distance:  parseOptional(fields[7]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("error reading file: %w", err)
	}

	return readings, timestamp, nil
}

func escapeTSV(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}

// formatOptional leaves absent values as an empty cell.
func formatOptional(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseOptional(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
