package app

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// session carries the identity of one generate run.
type session struct {
	id     string
	logger *slog.Logger
}

var sanitizeRegex = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

func newSession(project string) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		logger: slog.With("run", id, "project", project),
	}
}

func sanitizeForPath(s string) string {
	s = strings.TrimSpace(s)
	s = sanitizeRegex.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "untitled"
	}
	return s
}
