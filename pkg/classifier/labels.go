package classifier

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// metadata is the subset of a Teachable Machine metadata.json we use.
type metadata struct {
	Labels []string `json:"labels"`
}

// LoadLabels reads the class labels for a model.
//
// A .json file is read as metadata with a "labels" array. Any other file
// is read as plain text with one label per line; blank lines are skipped.
func LoadLabels(file string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(file), ".json") {
		return loadMetadataLabels(file)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels in %s", file)
	}

	return labels, nil
}

func loadMetadataLabels(file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	var md metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", file, err)
	}
	if len(md.Labels) == 0 {
		return nil, fmt.Errorf("no labels in %s", file)
	}

	labels := make([]string, len(md.Labels))
	for i, l := range md.Labels {
		labels[i] = strings.TrimSpace(l)
	}
	return labels, nil
}

// LabelFor returns labels[i], or the index as a string when out of range.
func LabelFor(labels []string, i int) string {
	if i >= 0 && i < len(labels) {
		return labels[i]
	}
	return strconv.Itoa(i)
}
