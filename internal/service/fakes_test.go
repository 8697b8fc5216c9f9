package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/cache"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/interfaces"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// ---- 数据源 ----

type fakeSource struct {
	matches map[string]*model.SourceMatch
	roster  []*model.RosterPlayer
	err     error // 非空时所有调用都返回该错误
}

func newFakeSource() *fakeSource {
	return &fakeSource{matches: make(map[string]*model.SourceMatch)}
}

func (f *fakeSource) GetName() string { return "fake" }

func (f *fakeSource) FetchUpcomingMatches(_ context.Context) ([]*model.SourceMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.SourceMatch
	for _, m := range f.matches {
		if m.Status != model.StatusFinished && m.Status != model.StatusCancelled {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) FetchFinishedMatches(_ context.Context, _ int) ([]*model.SourceMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.SourceMatch
	for _, m := range f.matches {
		if m.Status == model.StatusFinished {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) FetchMatch(_ context.Context, matchID string) (*model.SourceMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.matches[matchID]; ok {
		return m, nil
	}
	return nil, xerrors.NewValidationError("unknown match %s", matchID)
}

func (f *fakeSource) FetchRoster(_ context.Context, _ string) ([]*model.RosterPlayer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roster, nil
}

// ---- 聊天平台 ----

type fakeThread struct {
	id     string
	name   string
	locked bool
}

type fakePlatform struct {
	mu       sync.Mutex
	seq      int
	threads  map[string]*fakeThread
	messages map[string]map[string]string // threadID → messageID → content

	createCalls int
	createErr   error
	findErr     error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		threads:  make(map[string]*fakeThread),
		messages: make(map[string]map[string]string),
	}
}

func (f *fakePlatform) CreateThread(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	f.seq++
	id := "thread-" + strconv.Itoa(f.seq)
	f.threads[id] = &fakeThread{id: id, name: name}
	f.messages[id] = make(map[string]string)
	return id, nil
}

func (f *fakePlatform) RenameThread(_ context.Context, threadID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if th, ok := f.threads[threadID]; ok {
		th.name = name
		return nil
	}
	return xerrors.NewValidationError("thread %s not found", threadID)
}

func (f *fakePlatform) LockThread(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if th, ok := f.threads[threadID]; ok {
		th.locked = true
		return nil
	}
	return xerrors.NewValidationError("thread %s not found", threadID)
}

func (f *fakePlatform) PostMessage(_ context.Context, threadID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.messages[threadID]
	if !ok {
		return "", xerrors.NewValidationError("thread %s not found", threadID)
	}
	id := "msg-" + strconv.Itoa(len(msgs)+1)
	msgs[id] = content
	return id, nil
}

func (f *fakePlatform) EditMessage(_ context.Context, threadID, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msgs, ok := f.messages[threadID]; ok {
		if _, ok := msgs[messageID]; ok {
			msgs[messageID] = content
			return nil
		}
	}
	return xerrors.NewValidationError("message %s not found", messageID)
}

func (f *fakePlatform) GetMessage(_ context.Context, threadID, messageID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msgs, ok := f.messages[threadID]; ok {
		if content, ok := msgs[messageID]; ok {
			return content, true, nil
		}
	}
	return "", false, nil
}

func (f *fakePlatform) FindThreadByTag(_ context.Context, tag string) (*interfaces.ThreadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, th := range f.threads {
		if strings.Contains(th.name, tag) {
			return &interfaces.ThreadInfo{ThreadID: th.id, Name: th.name, Locked: th.locked}, nil
		}
	}
	return nil, nil
}

func (f *fakePlatform) ThreadExists(_ context.Context, threadID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.threads[threadID]
	return ok, nil
}

func (f *fakePlatform) deleteThread(threadID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.threads, threadID)
	delete(f.messages, threadID)
}

func (f *fakePlatform) threadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.threads)
}

// ---- 仓储 ----

type fakeMatchRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{rows: make(map[string]*model.Match)}
}

func (f *fakeMatchRepo) Get(_ context.Context, matchID string) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.rows[matchID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeMatchRepo) Upsert(_ context.Context, m *model.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.rows[m.MatchID] = &cp
	return nil
}

func (f *fakeMatchRepo) List(_ context.Context) ([]*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Match
	for _, m := range f.rows {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt < out[j].ScheduledAt })
	return out, nil
}

func (f *fakeMatchRepo) ListFinishedBefore(_ context.Context, cutoff int64) ([]*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Match
	for _, m := range f.rows {
		if m.FinishedAt != nil && *m.FinishedAt < cutoff {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeMatchRepo) Delete(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, matchID)
	return nil
}

type fakeThreadRepo struct {
	mu   sync.Mutex
	rows map[string]*model.ThreadAssociation
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{rows: make(map[string]*model.ThreadAssociation)}
}

func (f *fakeThreadRepo) GetByMatch(_ context.Context, matchID string) (*model.ThreadAssociation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[matchID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeThreadRepo) Create(_ context.Context, a *model.ThreadAssociation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[a.MatchID]; ok {
		return &xerrors.DuplicateDetectedError{Resource: "thread:" + a.MatchID}
	}
	for _, existing := range f.rows {
		if existing.ThreadID == a.ThreadID {
			return &xerrors.DuplicateDetectedError{Resource: "thread-id:" + a.ThreadID}
		}
	}
	cp := *a
	cp.UpdatedAt = time.Now()
	f.rows[a.MatchID] = &cp
	return nil
}

func (f *fakeThreadRepo) MarkFinished(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[matchID]; ok && a.ThreadType == model.ThreadTypeUpcoming {
		a.ThreadType = model.ThreadTypeFinished
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeThreadRepo) SetRsvpMessageID(_ context.Context, matchID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[matchID]; ok {
		a.RsvpMessageID = messageID
	}
	return nil
}

func (f *fakeThreadRepo) SetLockedAt(_ context.Context, matchID string, lockedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[matchID]; ok && a.LockedAt == nil {
		a.LockedAt = &lockedAt
	}
	return nil
}

func (f *fakeThreadRepo) ListByType(_ context.Context, threadType string) ([]*model.ThreadAssociation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ThreadAssociation
	for _, a := range f.rows {
		if a.ThreadType == threadType {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeThreadRepo) Remove(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, matchID)
	return nil
}

type fakeRsvpRepo struct {
	mu   sync.Mutex
	rows map[string]map[string]*model.RsvpEntry // matchID → userID → entry
}

func newFakeRsvpRepo() *fakeRsvpRepo {
	return &fakeRsvpRepo{rows: make(map[string]map[string]*model.RsvpEntry)}
}

func (f *fakeRsvpRepo) Upsert(_ context.Context, e *model.RsvpEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byUser, ok := f.rows[e.MatchID]
	if !ok {
		byUser = make(map[string]*model.RsvpEntry)
		f.rows[e.MatchID] = byUser
	}
	// 后写胜出，时间戳相同也覆盖
	if old, ok := byUser[e.UserID]; ok && e.RespondedAt < old.RespondedAt {
		return nil
	}
	cp := *e
	byUser[e.UserID] = &cp
	return nil
}

func (f *fakeRsvpRepo) ListByMatch(_ context.Context, matchID string) ([]*model.RsvpEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.RsvpEntry
	for _, e := range f.rows[matchID] {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out, nil
}

func (f *fakeRsvpRepo) DeleteByMatch(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, matchID)
	return nil
}

type fakeMarkerRepo struct {
	mu     sync.Mutex
	marked map[string]bool
}

func newFakeMarkerRepo() *fakeMarkerRepo {
	return &fakeMarkerRepo{marked: make(map[string]bool)}
}

func (f *fakeMarkerRepo) Mark(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked[matchID] = true
	return nil
}

func (f *fakeMarkerRepo) IsMarked(_ context.Context, matchID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marked[matchID], nil
}

func (f *fakeMarkerRepo) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// ---- 缓存 ----

type fakeCacheRepo struct {
	mu   sync.Mutex
	rows map[string]*model.CacheEntry
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{rows: make(map[string]*model.CacheEntry)}
}

func (f *fakeCacheRepo) Get(_ context.Context, key string) (*model.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.rows[key]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCacheRepo) Set(_ context.Context, key, payload string, expiresAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = &model.CacheEntry{CacheKey: key, Payload: payload, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeCacheRepo) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.rows, k)
	}
	return nil
}

func (f *fakeCacheRepo) DeleteExpired(_ context.Context, now int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, e := range f.rows {
		if e.ExpiresAt <= now {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeCacheRepo) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func newTestCache(matches *fakeMatchRepo) *cache.Adaptive {
	return cache.NewAdaptive(newFakeCacheRepo(), matches, quietLogger())
}
