package refs

import (
	"docdigest/internal/domain"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"mvdan.cc/xurls/v2"
)

// Batch is a list of documents with an optional deadline, as read from a
// batch file.
type Batch struct {
	Documents []domain.DocumentRef
	// Deadline is zero when the file does not set one.
	Deadline time.Duration
}

type batchFile struct {
	Documents []string `yaml:"documents"`
	Deadline  string   `yaml:"deadline"`
}

// FromText returns the http(s) URLs found in text in order of appearance,
// without repeats.
func FromText(text string) ([]domain.DocumentRef, error) {
	urlRe, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return nil, fmt.Errorf("failed to create regexp: %w", err)
	}

	urls := urlRe.FindAllString(text, -1)

	out := make([]domain.DocumentRef, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))

	for _, u := range urls {
		u = strings.TrimSpace(u)
		if _, ok := seen[u]; ok {
			continue
		}

		out = append(out, domain.DocumentRef(u))
		seen[u] = struct{}{}
	}

	return out, nil
}

// Parse reads a YAML batch document ("documents" and "deadline" keys). Any
// other content is scanned for URLs instead.
func Parse(b []byte) (Batch, error) {
	var raw batchFile
	if err := yaml.Unmarshal(b, &raw); err == nil && len(raw.Documents) > 0 {
		batch := Batch{Documents: make([]domain.DocumentRef, 0, len(raw.Documents))}
		for _, d := range raw.Documents {
			batch.Documents = append(batch.Documents, domain.DocumentRef(strings.TrimSpace(d)))
		}

		if s := strings.TrimSpace(raw.Deadline); s != "" {
			deadline, parseErr := time.ParseDuration(s)
			if parseErr != nil {
				return Batch{}, fmt.Errorf("parse deadline: %w", parseErr)
			}
			if deadline <= 0 {
				return Batch{}, fmt.Errorf("deadline must be positive (deadline = %s)", s)
			}
			batch.Deadline = deadline
		}

		return batch, nil
	}

	documents, err := FromText(string(b))
	if err != nil {
		return Batch{}, fmt.Errorf("find urls: %w", err)
	}

	return Batch{Documents: documents}, nil
}

func LoadFile(path string) (Batch, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch file: %w", err)
	}

	batch, err := Parse(b)
	if err != nil {
		return Batch{}, fmt.Errorf("parse batch file %s: %w", path, err)
	}

	return batch, nil
}
