package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var errDimension = errors.New("inconsistent vector dimension")

// readVectors parses one vector per CSV record. Empty lines are skipped.
func readVectors(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var vectors [][]float64
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		v, err := parseFields(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(vectors) > 0 && len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("line %d: %w: got %d, want %d", line, errDimension, len(v), len(vectors[0]))
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// parseVector parses a comma separated vector such as "0.5,1,2".
func parseVector(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty vector")
	}
	return parseFields(strings.Split(s, ","))
}

func parseFields(fields []string) ([]float64, error) {
	v := make([]float64, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		v[i] = x
	}
	return v, nil
}
