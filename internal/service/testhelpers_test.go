package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory ObjectStore. Download materializes a real temp
// file so pipeline cleanup has something to remove.
type memStore struct {
	objects     map[string][]byte
	dir         string
	putErr      error
	moveErr     error
	deleteErr   error
	signErr     error
	downloadErr error
	moves       [][2]string
	deleted     []string
}

func newMemStore(dir string) *memStore {
	return &memStore{objects: map[string][]byte{}, dir: dir}
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Download(_ context.Context, key, _ string) (string, error) {
	if m.downloadErr != nil {
		return "", m.downloadErr
	}
	data, ok := m.objects[key]
	if !ok {
		return "", apperrors.NotFoundf("object %s not found", key)
	}
	path := filepath.Join(m.dir, filepath.Base(key))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (m *memStore) Move(_ context.Context, oldKey, newKey string) error {
	if m.moveErr != nil {
		return m.moveErr
	}
	data, ok := m.objects[oldKey]
	if !ok {
		return apperrors.NotFoundf("object %s not found", oldKey)
	}
	m.objects[newKey] = data
	delete(m.objects, oldKey)
	m.moves = append(m.moves, [2]string{oldKey, newKey})
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) SignedReadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return "https://signed.example.com/" + key, nil
}

// memInterviews is an in-memory InterviewRepository keyed by (user, id).
type memInterviews struct {
	interviews map[string]*model.Interview
	putErr     error
}

func newMemInterviews(seed ...*model.Interview) *memInterviews {
	repo := &memInterviews{interviews: map[string]*model.Interview{}}
	for _, iv := range seed {
		repo.interviews[interviewKey(iv.UserID, iv.ID)] = iv
	}
	return repo
}

func interviewKey(userID string, id int64) string {
	return fmt.Sprintf("%s/%d", userID, id)
}

func (m *memInterviews) Put(_ context.Context, interview *model.Interview) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.interviews[interviewKey(interview.UserID, interview.ID)] = interview
	return nil
}

func (m *memInterviews) GetByID(_ context.Context, userID string, id int64) (*model.Interview, error) {
	iv, ok := m.interviews[interviewKey(userID, id)]
	if !ok {
		return nil, apperrors.NotFoundf("interview %d not found", id)
	}
	return iv, nil
}

func (m *memInterviews) List(_ context.Context, userID string, limit, offset int) ([]*model.InterviewSummary, error) {
	var out []*model.InterviewSummary
	for _, iv := range m.interviews {
		if iv.UserID != userID {
			continue
		}
		out = append(out, &model.InterviewSummary{ID: iv.ID, Title: iv.Title, Status: iv.Status})
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memInterviews) Delete(_ context.Context, userID string, id int64) (bool, error) {
	key := interviewKey(userID, id)
	if _, ok := m.interviews[key]; !ok {
		return false, nil
	}
	delete(m.interviews, key)
	return true, nil
}

// recordNotifier records deliveries and can fail on demand.
type recordNotifier struct {
	urls     []string
	payloads []any
	secrets  []string
	err      error
}

func (n *recordNotifier) Deliver(_ context.Context, url string, payload any, secret string) error {
	n.urls = append(n.urls, url)
	n.payloads = append(n.payloads, payload)
	n.secrets = append(n.secrets, secret)
	return n.err
}

// stubTranscriber returns canned segments.
type stubTranscriber struct {
	segments []model.TranscriptSegment
	audioURL string
	err      error
}

func (s *stubTranscriber) Transcribe(_ context.Context, audioURL string) ([]model.TranscriptSegment, error) {
	s.audioURL = audioURL
	if s.err != nil {
		return nil, s.err
	}
	return s.segments, nil
}

// stubGenerator returns a canned model response.
type stubGenerator struct {
	response string
	prompt   string
	mode     model.AnalysisMode
	err      error
}

func (s *stubGenerator) Generate(_ context.Context, prompt string, mode model.AnalysisMode) (string, error) {
	s.prompt = prompt
	s.mode = mode
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}
