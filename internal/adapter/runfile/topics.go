package runfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"ranker/internal/domain"
)

// Topic is one batch query.
type Topic struct {
	ID   string
	Text string
	Line int
}

var topicLine = regexp.MustCompile(`^(\d+)\s+(.*)$`)

var errMalformedTopic = errors.New(`malformed topic line, want "<digits><whitespace><query>"`)

// TopicSet is the result of reading a topic file. Malformed holds one
// *domain.InputError per rejected line.
type TopicSet struct {
	Topics    []Topic
	Malformed []error
}

// Err joins every malformed-line error, or returns nil.
func (s TopicSet) Err() error {
	return errors.Join(s.Malformed...)
}

// ReadTopics reads a topic file. Blank lines are skipped; malformed lines
// are collected rather than aborting the read, so callers see all of them.
func ReadTopics(path string) (TopicSet, error) {
	if path == "" {
		return TopicSet{}, &domain.InputError{Path: "topics", Err: errors.New("no topic file given")}
	}
	f, err := os.Open(path)
	if err != nil {
		return TopicSet{}, &domain.InputError{Path: path, Err: err}
	}
	defer f.Close()

	set, err := parseTopics(path, f)
	if err != nil {
		return TopicSet{}, &domain.InputError{Path: path, Err: err}
	}
	return set, nil
}

func parseTopics(path string, r io.Reader) (TopicSet, error) {
	var set TopicSet
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := topicLine.FindStringSubmatch(line)
		if m == nil {
			set.Malformed = append(set.Malformed, &domain.InputError{Path: path, Line: n, Err: errMalformedTopic})
			continue
		}
		set.Topics = append(set.Topics, Topic{ID: m[1], Text: m[2], Line: n})
	}
	if err := sc.Err(); err != nil {
		return TopicSet{}, fmt.Errorf("read topics: %w", err)
	}
	return set, nil
}
