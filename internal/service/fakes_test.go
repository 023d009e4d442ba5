package service

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/repository"
)

// memDB is an in-memory stand-in for the PostgreSQL schema. It mirrors the
// unique constraints and cascades the services rely on.
type memDB struct {
	mu       sync.Mutex
	examLock sync.Mutex
	nextID   int64

	exams     map[int64]*model.Exam
	sets      map[int64]*model.Set
	questions map[int64]*model.SetQuestion
	sessions  map[int64]*model.Session
	prints    map[int64]*model.Print
	printQs   map[int64][]model.PrintedQuestion
	logs      []model.LogEntry

	groupCourse map[int64]int64   // group -> course
	members     map[int64][]int64 // user -> groups
}

func newMemDB() *memDB {
	return &memDB{
		exams:       map[int64]*model.Exam{},
		sets:        map[int64]*model.Set{},
		questions:   map[int64]*model.SetQuestion{},
		sessions:    map[int64]*model.Session{},
		prints:      map[int64]*model.Print{},
		printQs:     map[int64][]model.PrintedQuestion{},
		groupCourse: map[int64]int64{},
		members:     map[int64][]int64{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// addGroup registers a group of a course with its members.
func (db *memDB) addGroup(courseID, groupID int64, users ...int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.groupCourse[groupID] = courseID
	for _, u := range users {
		db.members[u] = append(db.members[u], groupID)
	}
}

// dropQuestionLocked deletes a question and its printed copies.
func (db *memDB) dropQuestionLocked(id int64) {
	delete(db.questions, id)
	for pid, qs := range db.printQs {
		db.printQs[pid] = slices.DeleteFunc(qs, func(pq model.PrintedQuestion) bool {
			return pq.QuestionID == id
		})
	}
}

func (db *memDB) dropSetLocked(id int64) {
	for qid, q := range db.questions {
		if q.SetID == id {
			db.dropQuestionLocked(qid)
		}
	}
	delete(db.sets, id)
}

func (db *memDB) dropSessionLocked(id int64) {
	for pid, p := range db.prints {
		if p.SessionID == id {
			delete(db.prints, pid)
			delete(db.printQs, pid)
		}
	}
	delete(db.sessions, id)
}

// ─── Exams ──────────────────────────────────────────────────────────

type fakeExams struct{ db *memDB }

func (f fakeExams) GetByID(_ context.Context, id int64) (*model.Exam, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *e
	return &c, nil
}

func (f fakeExams) ListByCourse(_ context.Context, courseID int64, includeHidden bool) ([]model.Exam, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Exam
	for _, e := range f.db.exams {
		if e.CourseID == courseID && (includeHidden || !e.Hidden) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeExams) ExistsTitle(_ context.Context, courseID int64, title string, excludeID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, e := range f.db.exams {
		if e.CourseID == courseID && e.Title == title && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeExams) Create(_ context.Context, e *model.Exam) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, other := range f.db.exams {
		if other.CourseID == e.CourseID && other.Title == e.Title {
			return repository.ErrDuplicate
		}
	}
	e.ID = f.db.id()
	c := *e
	f.db.exams[e.ID] = &c
	return nil
}

func (f fakeExams) Update(_ context.Context, e *model.Exam) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.exams[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	c := *e
	f.db.exams[e.ID] = &c
	return nil
}

func (f fakeExams) SetHidden(_ context.Context, id int64, hidden bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.exams[id]
	if !ok {
		return pgx.ErrNoRows
	}
	e.Hidden = hidden
	return nil
}

func (f fakeExams) SetVisibility(_ context.Context, id int64, v model.Visibility) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.exams[id]
	if !ok {
		return pgx.ErrNoRows
	}
	e.Visibility = v
	return nil
}

func (f fakeExams) Delete(_ context.Context, id int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.exams[id]; !ok {
		return pgx.ErrNoRows
	}
	for sid, s := range f.db.sets {
		if s.ExamID == id {
			f.db.dropSetLocked(sid)
		}
	}
	for sid, s := range f.db.sessions {
		if s.ExamID == id {
			f.db.dropSessionLocked(sid)
		}
	}
	delete(f.db.exams, id)
	return nil
}

// ─── Sets ───────────────────────────────────────────────────────────

type fakeSets struct{ db *memDB }

func (f fakeSets) GetByID(_ context.Context, id int64) (*model.Set, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *s
	return &c, nil
}

func (f fakeSets) ListByExam(_ context.Context, examID int64) ([]model.Set, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Set
	for _, s := range f.db.sets {
		if s.ExamID == examID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (f fakeSets) ExistsTitle(_ context.Context, examID int64, title string, excludeID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.sets {
		if s.ExamID == examID && s.Title == title && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeSets) Update(_ context.Context, s *model.Set) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cur, ok := f.db.sets[s.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	cur.Title = s.Title
	cur.PrintCount = s.PrintCount
	return nil
}

func (f fakeSets) WithExamLock(_ context.Context, _ int64, fn func(repository.SetWriter) error) error {
	f.db.examLock.Lock()
	defer f.db.examLock.Unlock()
	return fn(fakeSetWriter(f))
}

type fakeSetWriter struct{ db *memDB }

func (w fakeSetWriter) Get(ctx context.Context, setID int64) (*model.Set, error) {
	return fakeSets(w).GetByID(ctx, setID)
}

func (w fakeSetWriter) MaxIndex(_ context.Context, examID int64) (int, error) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	maxIndex := 0
	for _, s := range w.db.sets {
		if s.ExamID == examID && s.Index > maxIndex {
			maxIndex = s.Index
		}
	}
	return maxIndex, nil
}

func (w fakeSetWriter) GetByIndex(_ context.Context, examID int64, index int) (*model.Set, error) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	for _, s := range w.db.sets {
		if s.ExamID == examID && s.Index == index {
			c := *s
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (w fakeSetWriter) Insert(_ context.Context, s *model.Set) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	for _, other := range w.db.sets {
		if other.ExamID == s.ExamID && (other.Index == s.Index || other.Title == s.Title) {
			return repository.ErrDuplicate
		}
	}
	s.ID = w.db.id()
	c := *s
	w.db.sets[s.ID] = &c
	return nil
}

func (w fakeSetWriter) Delete(_ context.Context, setID int64) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	if _, ok := w.db.sets[setID]; !ok {
		return pgx.ErrNoRows
	}
	w.db.dropSetLocked(setID)
	return nil
}

func (w fakeSetWriter) ShiftDown(_ context.Context, examID int64, after int) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	for _, s := range w.db.sets {
		if s.ExamID == examID && s.Index > after {
			s.Index--
		}
	}
	return nil
}

func (w fakeSetWriter) Swap(_ context.Context, upper, lower *model.Set) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	a, okA := w.db.sets[upper.ID]
	b, okB := w.db.sets[lower.ID]
	if !okA || !okB {
		return pgx.ErrNoRows
	}
	a.Index, b.Index = b.Index, a.Index
	return nil
}

// ─── Questions ──────────────────────────────────────────────────────

type fakeQuestions struct{ db *memDB }

func cloneQuestion(q *model.SetQuestion) *model.SetQuestion {
	c := *q
	c.Options = slices.Clone(q.Options)
	return &c
}

func (f fakeQuestions) GetByID(_ context.Context, id int64) (*model.SetQuestion, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	q, ok := f.db.questions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneQuestion(q), nil
}

func (f fakeQuestions) ListBySet(_ context.Context, setID int64) ([]model.SetQuestion, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.SetQuestion
	for _, q := range f.db.questions {
		if q.SetID == setID {
			out = append(out, *cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeQuestions) GetMany(_ context.Context, ids []int64) (map[int64]*model.SetQuestion, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make(map[int64]*model.SetQuestion, len(ids))
	for _, id := range ids {
		if q, ok := f.db.questions[id]; ok {
			out[id] = cloneQuestion(q)
		}
	}
	return out, nil
}

func (f fakeQuestions) InsertBatch(_ context.Context, setID int64, specs []model.QuestionSpec) ([]model.SetQuestion, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	set, ok := f.db.sets[setID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	created := make([]model.SetQuestion, 0, len(specs))
	for _, spec := range specs {
		q := model.SetQuestion{
			ID:         f.db.id(),
			SetID:      setID,
			ExamID:     set.ExamID,
			AnswerType: spec.AnswerType,
			Shuffle:    spec.Shuffle,
			Stem:       spec.Stem,
			Feedback:   spec.Feedback,
			MediaRef:   spec.MediaRef,
		}
		for i, o := range spec.Options {
			q.Options = append(q.Options, model.AnswerOption{
				QuestionID: q.ID,
				Index:      i,
				Text:       o.Text,
				Feedback:   o.Feedback,
				Correct:    o.Correct,
			})
		}
		f.db.questions[q.ID] = cloneQuestion(&q)
		created = append(created, q)
	}
	return created, nil
}

func (f fakeQuestions) Delete(_ context.Context, id int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.questions[id]; !ok {
		return pgx.ErrNoRows
	}
	f.db.dropQuestionLocked(id)
	return nil
}

func (f fakeQuestions) SetInvalid(_ context.Context, id int64, invalid bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	q, ok := f.db.questions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	q.Invalid = invalid
	return nil
}

// ─── Sessions and groups ────────────────────────────────────────────

type fakeSessions struct{ db *memDB }

func cloneSession(s *model.Session) *model.Session {
	c := *s
	c.GroupIDs = slices.Clone(s.GroupIDs)
	if c.GroupIDs == nil {
		c.GroupIDs = []int64{}
	}
	return &c
}

func (f fakeSessions) GetByID(_ context.Context, id int64) (*model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneSession(s), nil
}

func (f fakeSessions) ListByExam(_ context.Context, examID int64) ([]model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Session
	for _, s := range f.db.sessions {
		if s.ExamID == examID {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSessions) ListEndedBetween(_ context.Context, from, to time.Time) ([]int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []int64
	for id, s := range f.db.sessions {
		if !s.EndTime.Before(from) && s.EndTime.Before(to) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (f fakeSessions) Create(_ context.Context, s *model.Session) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s.ID = f.db.id()
	f.db.sessions[s.ID] = cloneSession(s)
	return nil
}

func (f fakeSessions) Update(_ context.Context, s *model.Session) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.sessions[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.db.sessions[s.ID] = cloneSession(s)
	return nil
}

func (f fakeSessions) Delete(_ context.Context, id int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.sessions[id]; !ok {
		return pgx.ErrNoRows
	}
	f.db.dropSessionLocked(id)
	return nil
}

func (f fakeSessions) SetHidden(_ context.Context, id int64, hidden bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Hidden = hidden
	return nil
}

func (f fakeSessions) ToggleShowResults(_ context.Context, id int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	s.ShowResults = !s.ShowResults
	return s.ShowResults, nil
}

func (f fakeSessions) ReplaceGroups(_ context.Context, sessionID int64, groupIDs []int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return pgx.ErrNoRows
	}
	s.GroupIDs = slices.Clone(groupIDs)
	return nil
}

type fakeGroups struct{ db *memDB }

func (f fakeGroups) UserGroups(_ context.Context, courseID, userID int64) ([]int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []int64
	for _, g := range f.db.members[userID] {
		if f.db.groupCourse[g] == courseID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGroups) CountInCourse(_ context.Context, courseID int64, ids []int64) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, id := range ids {
		if c, ok := f.db.groupCourse[id]; ok && c == courseID {
			n++
		}
	}
	return n, nil
}

// ─── Prints and log ─────────────────────────────────────────────────

type fakePrints struct{ db *memDB }

func clonePrinted(qs []model.PrintedQuestion) []model.PrintedQuestion {
	out := make([]model.PrintedQuestion, len(qs))
	for i, q := range qs {
		q.OptionOrder = slices.Clone(q.OptionOrder)
		out[i] = q
	}
	return out
}

func (f fakePrints) Create(_ context.Context, p *model.Print) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, other := range f.db.prints {
		if other.SessionID == p.SessionID && other.UserID == p.UserID {
			return repository.ErrDuplicate
		}
	}
	p.ID = f.db.id()
	for i := range p.Questions {
		p.Questions[i].PrintID = p.ID
	}
	c := *p
	c.Questions = nil
	f.db.prints[p.ID] = &c
	f.db.printQs[p.ID] = clonePrinted(p.Questions)
	return nil
}

func (f fakePrints) GetByID(_ context.Context, id int64) (*model.Print, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.prints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *p
	return &c, nil
}

func (f fakePrints) GetBySessionAndUser(_ context.Context, sessionID, userID int64) (*model.Print, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, p := range f.db.prints {
		if p.SessionID == sessionID && p.UserID == userID {
			c := *p
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f fakePrints) ListBySession(_ context.Context, sessionID int64) ([]model.Print, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Print
	for _, p := range f.db.prints {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakePrints) ListQuestions(_ context.Context, printID int64) ([]model.PrintedQuestion, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := clonePrinted(f.db.printQs[printID])
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (f fakePrints) Activate(_ context.Context, id int64, now time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.prints[id]
	if !ok || !p.StartTime.Equal(model.Epoch) {
		return false, nil
	}
	p.StartTime, p.EndTime = now, now
	return true, nil
}

func (f fakePrints) UpsertAnswer(_ context.Context, q *model.PrintedQuestion) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	qs := f.db.printQs[q.PrintID]
	for i := range qs {
		if qs[i].Index == q.Index {
			qs[i].Answer = q.Answer
			qs[i].Score = q.Score
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f fakePrints) UpdateProgress(_ context.Context, id int64, at time.Time, notBlank int, score float64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.prints[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.EndTime, p.NumQstsNotBlank, p.Score = at, notBlank, score
	return nil
}

func (f fakePrints) Finish(_ context.Context, id int64, at time.Time, notBlank int, score float64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.prints[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Finished = true
	p.EndTime, p.NumQstsNotBlank, p.Score = at, notBlank, score
	return nil
}

func (f fakePrints) ListIDsByQuestion(_ context.Context, questionID int64) ([]int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []int64
	for pid, qs := range f.db.printQs {
		for _, q := range qs {
			if q.QuestionID == questionID {
				out = append(out, pid)
				break
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

func (f fakePrints) ListIDsBySessions(_ context.Context, sessionIDs []int64) ([]int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []int64
	for pid, p := range f.db.prints {
		if slices.Contains(sessionIDs, p.SessionID) {
			out = append(out, pid)
		}
	}
	slices.Sort(out)
	return out, nil
}

type fakeLogs struct{ db *memDB }

func (f fakeLogs) Append(_ context.Context, e *model.LogEntry) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e.ID = int64(len(f.db.logs) + 1)
	f.db.logs = append(f.db.logs, *e)
	return nil
}

func (f fakeLogs) Latest(_ context.Context, printID int64) (repository.LatestClient, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out repository.LatestClient
	for _, e := range f.db.logs {
		if e.PrintID != printID {
			continue
		}
		if e.BrowserSession != "" {
			out.BrowserSession, out.HasSession = e.BrowserSession, true
		}
		if e.UserAgent != "" {
			out.UserAgent, out.HasUserAgent = e.UserAgent, true
		}
	}
	return out, nil
}

func (f fakeLogs) ListByPrint(_ context.Context, printID int64) ([]model.LogEntry, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.LogEntry
	for _, e := range f.db.logs {
		if e.PrintID == printID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ─── Side effects ───────────────────────────────────────────────────

type fakeNotifier struct {
	mu       sync.Mutex
	events   []model.MonitorEvent
	enqueued []int64
}

func (n *fakeNotifier) PublishMonitor(_ context.Context, ev model.MonitorEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) EnqueueRescore(_ context.Context, printIDs ...int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enqueued = append(n.enqueued, printIDs...)
	return nil
}

// identityRand never shuffles, keeping draws deterministic.
type identityRand struct{}

func (identityRand) Perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// reverseRand returns the reversed identity, a permutation tests can predict.
type reverseRand struct{}

func (reverseRand) Perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = n - 1 - i
	}
	return out
}

// ─── Fixture ────────────────────────────────────────────────────────

const testCourse int64 = 1

// world wires every service over one memDB.
type world struct {
	db       *memDB
	notifier *fakeNotifier
	catalog  *CatalogService
	sessions *SessionService
	logs     *LogService
	prints   *PrintService
	results  *ResultService
}

func newWorld() *world {
	return newWorldWithRand(identityRand{})
}

func newWorldWithRand(rng RandomSource) *world {
	db := newMemDB()
	n := &fakeNotifier{}
	log := zerolog.Nop()

	exams, sets, questions := fakeExams{db}, fakeSets{db}, fakeQuestions{db}
	sessions, groups := fakeSessions{db}, fakeGroups{db}
	prints, logs := fakePrints{db}, fakeLogs{db}

	logSvc := NewLogService(exams, sessions, prints, logs, n, log)
	return &world{
		db:       db,
		notifier: n,
		catalog:  NewCatalogService(exams, sets, questions, prints, n, 10, log),
		sessions: NewSessionService(exams, sessions, groups, log),
		logs:     logSvc,
		prints: NewPrintService(PrintDeps{
			Exams:     exams,
			Sessions:  sessions,
			Groups:    groups,
			Sets:      sets,
			Questions: questions,
			Prints:    prints,
			Logs:      logSvc,
			Notifier:  n,
			Rand:      rng,
		}, 100, log),
		results: NewResultService(exams, sessions, prints, questions, log),
	}
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func teacherCtx() model.RequestContext {
	return model.NewRequestContext(testCourse, 100, model.RoleTeacher, testNow)
}

func studentCtx(userID int64) model.RequestContext {
	rc := model.NewRequestContext(testCourse, userID, model.RoleStudent, testNow)
	rc.IP = "10.0.0.1"
	rc.BrowserSession = "sess-a"
	rc.UserAgent = "Firefox"
	return rc
}

func unique(texts ...string) model.QuestionSpec {
	spec := model.QuestionSpec{AnswerType: model.AnswerUniqueChoice, Stem: "Pick one"}
	for i, t := range texts {
		spec.Options = append(spec.Options, model.OptionSpec{Text: t, Correct: i == 0})
	}
	return spec
}
