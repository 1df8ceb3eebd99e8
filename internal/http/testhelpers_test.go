package httpx

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/interviewlens/lens-api/internal/data"
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAuthenticator struct {
	user *model.User
	err  error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, _ string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeObjectStore struct {
	putKeys    []string
	putErr     error
	deleteKeys []string
}

func (f *fakeObjectStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	f.putKeys = append(f.putKeys, key)
	return nil
}

func (f *fakeObjectStore) Download(_ context.Context, _, _ string) (string, error) {
	return "", apperrors.NotFound("not implemented")
}

func (f *fakeObjectStore) Move(_ context.Context, _, _ string) error { return nil }

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.deleteKeys = append(f.deleteKeys, key)
	return nil
}

func (f *fakeObjectStore) SignedReadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

type fakeJobRepo struct {
	created   []*model.CreateJobRequest
	createErr error
}

func (f *fakeJobRepo) Create(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &model.Job{ID: "job-1", Type: req.Type, Status: model.JobStatusPending, UserID: req.UserID, Payload: req.Payload}, nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, _ string) (*model.Job, error) {
	return nil, data.ErrJobNotFound
}

func (f *fakeJobRepo) ReserveNext(_ context.Context, _ model.JobType, _ int) (*model.Job, error) {
	return nil, model.ErrNoJobsAvailable
}

func (f *fakeJobRepo) WaitForNotification(ctx context.Context, _ model.JobType) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeJobRepo) Heartbeat(_ context.Context, _ string, _ int) (bool, error) { return true, nil }
func (f *fakeJobRepo) Complete(_ context.Context, _ string) (bool, error)         { return true, nil }
func (f *fakeJobRepo) Fail(_ context.Context, _, _ string) (model.JobStatus, error) {
	return model.JobStatusPending, nil
}
func (f *fakeJobRepo) Stats(_ context.Context, _ model.JobType) (*model.JobStats, error) {
	return &model.JobStats{}, nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) EnsureUser(_ context.Context, id, email string, startingCredits float64) (*model.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	user := &model.User{ID: id, Email: email, Credits: startingCredits}
	f.users[id] = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, data.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) IncrementCredits(_ context.Context, id string, delta float64) (float64, error) {
	user, ok := f.users[id]
	if !ok {
		return 0, data.ErrUserNotFound
	}
	user.Credits += delta
	return user.Credits, nil
}

type fakeInterviewRepo struct {
	interviews map[int64]*model.Interview
}

func newFakeInterviewRepo(interviews ...*model.Interview) *fakeInterviewRepo {
	repo := &fakeInterviewRepo{interviews: make(map[int64]*model.Interview)}
	for _, i := range interviews {
		repo.interviews[i.ID] = i
	}
	return repo
}

func (f *fakeInterviewRepo) Put(_ context.Context, interview *model.Interview) error {
	f.interviews[interview.ID] = interview
	return nil
}

// GetByID mirrors the real repository's error contract: missing rows and
// foreign-owned rows both surface the package sentinel.
func (f *fakeInterviewRepo) GetByID(_ context.Context, userID string, id int64) (*model.Interview, error) {
	interview, ok := f.interviews[id]
	if !ok || interview.UserID != userID {
		return nil, data.ErrInterviewNotFound
	}
	return interview, nil
}

func (f *fakeInterviewRepo) List(_ context.Context, userID string, _, _ int) ([]*model.InterviewSummary, error) {
	var out []*model.InterviewSummary
	for _, interview := range f.interviews {
		if interview.UserID != userID {
			continue
		}
		out = append(out, &model.InterviewSummary{
			ID:     interview.ID,
			Title:  interview.Title,
			Status: interview.Status,
		})
	}
	return out, nil
}

func (f *fakeInterviewRepo) Delete(_ context.Context, userID string, id int64) (bool, error) {
	interview, ok := f.interviews[id]
	if !ok || interview.UserID != userID {
		return false, nil
	}
	delete(f.interviews, id)
	return true, nil
}
