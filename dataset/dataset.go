// Package dataset ingests the movies CSV that supplies the key-value
// workload. The overlay core never reads files; it consumes the pairs this
// package yields.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

var ErrSchema = fmt.Errorf("dataset: csv is missing a required column")

// Record is the value payload attached to one movie title.
type Record struct {
	ID          string   `json:"id"`
	Popularity  *float64 `json:"popularity"`
	VoteAverage *float64 `json:"vote_average"`
	VoteCount   *int     `json:"vote_count"`
	ReleaseDate string   `json:"release_date"`
}

// Encode serializes the record for storage in a node's key store.
func (r Record) Encode() []byte {
	// field order is fixed by the struct, so equal records encode equally
	b, _ := json.Marshal(r)
	return b
}

func Decode(b []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(b, &r)
	return r, err
}

// Pair is one workload item: the routing key and its payload.
type Pair struct {
	Key   []byte
	Value Record
}

// ReadMovies parses the TMDB movies CSV, yielding (title, record) pairs in
// file order. Rows without a title are skipped. A non-positive limit reads
// everything.
func ReadMovies(r io.Reader, limit int) ([]Pair, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	if _, ok := cols["title"]; !ok {
		return nil, fmt.Errorf("%w: title", ErrSchema)
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []Pair
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: reading row: %w", err)
		}
		title := field(row, "title")
		if title == "" {
			continue
		}
		out = append(out, Pair{
			Key: []byte(title),
			Value: Record{
				ID:          field(row, "id"),
				Popularity:  toFloat(field(row, "popularity")),
				VoteAverage: toFloat(field(row, "vote_average")),
				VoteCount:   toInt(field(row, "vote_count")),
				ReleaseDate: field(row, "release_date"),
			},
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func OpenMovies(path string, limit int) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening csv: %w", err)
	}
	defer f.Close()
	return ReadMovies(f, limit)
}

func toFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func toInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	i := int(v)
	return &i
}
