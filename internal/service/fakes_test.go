package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/infra/postgres/repository"
	"github.com/vocaloop/srs-core/internal/srs"
)

// fakeTx runs the function directly; the in-memory stores below do not need
// transactions.
type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type folderItemKey struct {
	folderID int64
	cardID   int64
}

// memDB is the shared backing data for the per-store fakes.
type memDB struct {
	nextID  int64
	cards   map[int64]*entities.Card
	folders map[int64]*entities.Folder
	items   map[folderItemKey]*entities.FolderItem
	wrong   map[int64]*entities.WrongAnswerEntry
	stats   map[string]*entities.DailyStudyStat
	streaks map[int64]*entities.UserStreakState

	failCardUpdate bool
}

func newMemDB() *memDB {
	return &memDB{
		cards:   make(map[int64]*entities.Card),
		folders: make(map[int64]*entities.Folder),
		items:   make(map[folderItemKey]*entities.FolderItem),
		wrong:   make(map[int64]*entities.WrongAnswerEntry),
		stats:   make(map[string]*entities.DailyStudyStat),
		streaks: make(map[int64]*entities.UserStreakState),
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) stores() Stores {
	return Stores{
		Cards:        &fakeCards{db: db},
		Folders:      &fakeFolders{db: db},
		WrongAnswers: &fakeWrong{db: db},
		DailyStats:   &fakeStats{db: db},
		Streaks:      &fakeStreaks{db: db},
	}
}

func (db *memDB) bind(pgx.Tx) Stores { return db.stores() }

func (db *memDB) addCard(c *entities.Card) *entities.Card {
	if c.ID == 0 {
		c.ID = db.id()
	}
	db.cards[c.ID] = copyCard(c)
	return c
}

func (db *memDB) addFolder(f *entities.Folder) *entities.Folder {
	if f.ID == 0 {
		f.ID = db.id()
	}
	db.folders[f.ID] = f
	return f
}

func (db *memDB) addWrong(w *entities.WrongAnswerEntry) *entities.WrongAnswerEntry {
	if w.ID == 0 {
		w.ID = db.id()
	}
	db.wrong[w.ID] = copyEntry(w)
	return w
}

func copyCard(c *entities.Card) *entities.Card {
	cc := *c
	return &cc
}

func copyEntry(w *entities.WrongAnswerEntry) *entities.WrongAnswerEntry {
	cw := *w
	return &cw
}

// fakeCards implements CardStore.
type fakeCards struct {
	db *memDB
}

func (f *fakeCards) Get(_ context.Context, cardID int64) (*entities.Card, error) {
	c, ok := f.db.cards[cardID]
	if !ok {
		return nil, repository.ErrCardNotFound
	}
	return copyCard(c), nil
}

func (f *fakeCards) GetForUpdate(ctx context.Context, cardID int64) (*entities.Card, error) {
	return f.Get(ctx, cardID)
}

func (f *fakeCards) GetByItem(_ context.Context, userID, itemID int64) (*entities.Card, error) {
	for _, c := range f.db.cards {
		if c.UserID == userID && c.ItemID == itemID {
			return copyCard(c), nil
		}
	}
	return nil, repository.ErrCardNotFound
}

func (f *fakeCards) EnsureCards(_ context.Context, userID int64, itemIDs []int64) ([]int64, error) {
	ids := make([]int64, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		found := false
		for _, c := range f.db.cards {
			if c.UserID == userID && c.ItemID == itemID {
				ids = append(ids, c.ID)
				found = true
				break
			}
		}
		if !found {
			c := entities.NewCard(userID, itemID, time.Time{})
			c.ID = f.db.id()
			f.db.cards[c.ID] = c
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeCards) AssignFolder(_ context.Context, folderID int64, cardIDs []int64) error {
	for _, id := range cardIDs {
		if c, ok := f.db.cards[id]; ok {
			fid := folderID
			c.FolderID = &fid
		}
	}
	return nil
}

func (f *fakeCards) Update(_ context.Context, c *entities.Card) error {
	if f.db.failCardUpdate {
		return errors.New("card update failed")
	}
	if _, ok := f.db.cards[c.ID]; !ok {
		return repository.ErrCardNotFound
	}
	f.db.cards[c.ID] = copyCard(c)
	return nil
}

func (f *fakeCards) Delete(_ context.Context, userID, cardID int64) error {
	c, ok := f.db.cards[cardID]
	if !ok || c.UserID != userID {
		return repository.ErrCardNotFound
	}
	delete(f.db.cards, cardID)
	for key := range f.db.items {
		if key.cardID == cardID {
			delete(f.db.items, key)
		}
	}
	return nil
}

func (f *fakeCards) list(filter func(*entities.Card) bool, less func(a, b *entities.Card) bool, limit int) []*entities.Card {
	var out []*entities.Card
	for _, c := range f.db.cards {
		if filter(c) {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeCards) ListWaitingElapsed(_ context.Context, now time.Time, limit int) ([]*entities.Card, error) {
	return f.list(func(c *entities.Card) bool {
		if c.WaitingUntil == nil || c.WaitingUntil.After(now) || c.IsOverdue {
			return false
		}
		return c.FrozenUntil == nil || !c.FrozenUntil.After(now)
	}, func(a, b *entities.Card) bool {
		return a.WaitingUntil.Before(*b.WaitingUntil)
	}, limit), nil
}

func (f *fakeCards) ListOverduePastDeadline(_ context.Context, now time.Time, limit int) ([]*entities.Card, error) {
	return f.list(func(c *entities.Card) bool {
		return c.IsOverdue && c.OverdueDeadline != nil && !c.OverdueDeadline.After(now)
	}, func(a, b *entities.Card) bool {
		return a.OverdueDeadline.Before(*b.OverdueDeadline)
	}, limit), nil
}

func (f *fakeCards) ListFrozenElapsed(_ context.Context, now time.Time, limit int) ([]*entities.Card, error) {
	return f.list(func(c *entities.Card) bool {
		return c.FrozenUntil != nil && !c.FrozenUntil.After(now)
	}, func(a, b *entities.Card) bool {
		return a.FrozenUntil.Before(*b.FrozenUntil)
	}, limit), nil
}

func (f *fakeCards) ListActiveTimers(_ context.Context, now time.Time, afterID int64, limit int) ([]*entities.Card, error) {
	return f.list(func(c *entities.Card) bool {
		if c.ID <= afterID {
			return false
		}
		waiting := c.WaitingUntil != nil && c.WaitingUntil.After(now)
		frozen := c.FrozenUntil != nil && c.FrozenUntil.After(now)
		return waiting || c.IsOverdue || frozen
	}, func(a, b *entities.Card) bool {
		return a.ID < b.ID
	}, limit), nil
}

func (f *fakeCards) FolderCurve(_ context.Context, c *entities.Card) (entities.LearningCurveType, error) {
	if c.FolderID == nil {
		return entities.CurveForgettingCurve, nil
	}
	folder, ok := f.db.folders[*c.FolderID]
	if !ok {
		return entities.CurveForgettingCurve, nil
	}
	return folder.LearningCurveType, nil
}

// fakeFolders implements FolderStore.
type fakeFolders struct {
	db *memDB
}

func (f *fakeFolders) Create(_ context.Context, folder *entities.Folder) (int64, error) {
	folder.ID = f.db.id()
	f.db.folders[folder.ID] = folder
	return folder.ID, nil
}

func (f *fakeFolders) Get(_ context.Context, folderID int64) (*entities.Folder, error) {
	folder, ok := f.db.folders[folderID]
	if !ok {
		return nil, repository.ErrFolderNotFound
	}
	return folder, nil
}

func (f *fakeFolders) AddItem(_ context.Context, folderID, cardID int64) error {
	key := folderItemKey{folderID, cardID}
	if _, ok := f.db.items[key]; ok {
		return repository.ErrFolderItemConflict
	}
	f.db.items[key] = &entities.FolderItem{FolderID: folderID, CardID: cardID}
	return nil
}

func (f *fakeFolders) UpdateItemReview(_ context.Context, folderID, cardID int64, learned bool, at time.Time) error {
	item, ok := f.db.items[folderItemKey{folderID, cardID}]
	if !ok {
		return nil
	}
	item.Learned = learned
	if !learned {
		item.WrongCount++
	}
	item.LastReviewedAt = &at
	return nil
}

func (f *fakeFolders) ResetItems(_ context.Context, folderID int64) error {
	for key, item := range f.db.items {
		if key.folderID == folderID {
			item.Learned = false
		}
	}
	return nil
}

func (f *fakeFolders) ListUnlearnedItems(_ context.Context, folderID int64) ([]*entities.QueueItem, error) {
	var out []*entities.QueueItem
	for key, item := range f.db.items {
		if key.folderID != folderID || item.Learned {
			continue
		}
		q := &entities.QueueItem{
			FolderID:   folderID,
			CardID:     key.cardID,
			Learned:    item.Learned,
			WrongCount: item.WrongCount,
		}
		if c, ok := f.db.cards[key.cardID]; ok {
			q.ItemID = c.ItemID
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out, nil
}

func (f *fakeFolders) CountUnlearned(ctx context.Context, folderID int64) (int, error) {
	items, _ := f.ListUnlearnedItems(ctx, folderID)
	return len(items), nil
}

func (f *fakeFolders) Counts(_ context.Context, folderID int64) (entities.FolderCounts, error) {
	var c entities.FolderCounts
	for key, item := range f.db.items {
		if key.folderID != folderID {
			continue
		}
		c.Total++
		if item.Learned {
			c.Learned++
		}
	}
	c.Remaining = c.Total - c.Learned
	return c, nil
}

func (f *fakeFolders) ListForDate(_ context.Context, userID int64, date time.Time) ([]*entities.Folder, error) {
	var out []*entities.Folder
	for _, folder := range f.db.folders {
		if folder.UserID == userID && !folder.Date.After(date) {
			out = append(out, folder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeFolders) ListAlarmCandidates(ctx context.Context, date time.Time) ([]*entities.Folder, error) {
	var out []*entities.Folder
	for _, folder := range f.db.folders {
		if !folder.Date.Equal(date) || !folder.AlarmActive {
			continue
		}
		n, _ := f.CountUnlearned(ctx, folder.ID)
		if n > 0 {
			out = append(out, folder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeFolders) SetNextAlarm(_ context.Context, folderID int64, at *time.Time) error {
	folder, ok := f.db.folders[folderID]
	if !ok {
		return repository.ErrFolderNotFound
	}
	folder.NextAlarmAt = at
	return nil
}

func (f *fakeFolders) SetAlarmActive(_ context.Context, folderID int64, active bool) error {
	folder, ok := f.db.folders[folderID]
	if !ok {
		return repository.ErrFolderNotFound
	}
	folder.AlarmActive = active
	return nil
}

func (f *fakeFolders) MuteAlarmsForDate(_ context.Context, date time.Time) (int64, error) {
	var n int64
	for _, folder := range f.db.folders {
		if folder.Date.Equal(date) && folder.NextAlarmAt != nil {
			folder.NextAlarmAt = nil
			n++
		}
	}
	return n, nil
}

// fakeWrong implements WrongAnswerStore.
type fakeWrong struct {
	db *memDB
}

func (f *fakeWrong) GetOpen(_ context.Context, userID, itemID int64) (*entities.WrongAnswerEntry, error) {
	for _, w := range f.db.wrong {
		if w.UserID == userID && w.ItemID == itemID && !w.IsCompleted {
			return copyEntry(w), nil
		}
	}
	return nil, repository.ErrWrongAnswerNotFound
}

func (f *fakeWrong) Create(_ context.Context, w *entities.WrongAnswerEntry) (int64, error) {
	w.ID = f.db.id()
	f.db.wrong[w.ID] = copyEntry(w)
	return w.ID, nil
}

func (f *fakeWrong) Refresh(_ context.Context, w *entities.WrongAnswerEntry) error {
	stored, ok := f.db.wrong[w.ID]
	if !ok || stored.IsCompleted {
		return repository.ErrWrongAnswerNotFound
	}
	f.db.wrong[w.ID] = copyEntry(w)
	return nil
}

func (f *fakeWrong) Complete(_ context.Context, id int64, at time.Time) error {
	w, ok := f.db.wrong[id]
	if !ok || w.IsCompleted {
		return repository.ErrWrongAnswerNotFound
	}
	w.IsCompleted = true
	w.CompletedAt = &at
	return nil
}

func (f *fakeWrong) ListByUser(_ context.Context, userID int64, includeCompleted bool) ([]*entities.WrongAnswerEntry, error) {
	var out []*entities.WrongAnswerEntry
	for _, w := range f.db.wrong {
		if w.UserID != userID {
			continue
		}
		if w.IsCompleted && !includeCompleted {
			continue
		}
		out = append(out, copyEntry(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WrongAt.After(out[j].WrongAt) })
	return out, nil
}

func (f *fakeWrong) ListOpenOldest(_ context.Context, userID int64, limit int) ([]*entities.WrongAnswerEntry, error) {
	var out []*entities.WrongAnswerEntry
	for _, w := range f.db.wrong {
		if w.UserID == userID && !w.IsCompleted {
			out = append(out, copyEntry(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WrongAt.Before(out[j].WrongAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeWrong) ExpireEndedBefore(_ context.Context, cutoff, completedAt time.Time) (int64, error) {
	var n int64
	for _, w := range f.db.wrong {
		if !w.IsCompleted && w.ReviewWindowEnd.Before(cutoff) {
			w.IsCompleted = true
			at := completedAt
			w.CompletedAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeWrong) CountAvailable(_ context.Context, userID int64, now time.Time) (int, error) {
	n := 0
	for _, w := range f.db.wrong {
		if w.UserID == userID && !w.IsCompleted && w.InWindow(now) {
			n++
		}
	}
	return n, nil
}

// fakeStats implements DailyStatStore.
type fakeStats struct {
	db *memDB
}

func statKey(userID int64, date time.Time) string {
	return fmt.Sprintf("%d/%s", userID, date.Format("2006-01-02"))
}

func (f *fakeStats) Bump(_ context.Context, userID int64, date time.Time, solved, autoLearned, wrongDueNext int) error {
	key := statKey(userID, date)
	s, ok := f.db.stats[key]
	if !ok {
		s = &entities.DailyStudyStat{UserID: userID, Date: date}
		f.db.stats[key] = s
	}
	s.SRSSolved += solved
	s.AutoLearned += autoLearned
	s.WrongDueNext += wrongDueNext
	return nil
}

func (f *fakeStats) Get(_ context.Context, userID int64, date time.Time) (*entities.DailyStudyStat, error) {
	s, ok := f.db.stats[statKey(userID, date)]
	if !ok {
		return nil, repository.ErrDailyStatNotFound
	}
	return s, nil
}

// fakeStreaks implements StreakStore.
type fakeStreaks struct {
	db *memDB
}

func (f *fakeStreaks) Get(_ context.Context, userID int64) (*entities.UserStreakState, error) {
	s, ok := f.db.streaks[userID]
	if !ok {
		return nil, repository.ErrStreakNotFound
	}
	return s, nil
}

func (f *fakeStreaks) GetForUpdate(ctx context.Context, userID int64) (*entities.UserStreakState, error) {
	return f.Get(ctx, userID)
}

func (f *fakeStreaks) Upsert(_ context.Context, s *entities.UserStreakState) error {
	f.db.streaks[s.UserID] = s
	return nil
}

func (f *fakeStreaks) ResetBelowThreshold(_ context.Context, day time.Time, required int) (int64, error) {
	var n int64
	for _, s := range f.db.streaks {
		if s.Streak == 0 {
			continue
		}
		if s.LastQuizDate != nil && srs.SameDay(*s.LastQuizDate, day) && s.DailyQuizCount >= required {
			continue
		}
		s.Streak = 0
		n++
	}
	return n, nil
}

// fakeVocab serves a tiny fixed vocabulary.
type fakeVocab struct {
	items map[int64]*entities.VocabItem
}

func newFakeVocab() *fakeVocab {
	return &fakeVocab{items: map[int64]*entities.VocabItem{
		1: {ID: 1, Lemma: "alpha", Gloss: "first", Level: "A1"},
		2: {ID: 2, Lemma: "beta", Gloss: "second", Level: "A1"},
		3: {ID: 3, Lemma: "gamma", Gloss: "third", Level: "A1"},
		4: {ID: 4, Lemma: "delta", Gloss: "fourth", Level: "A1"},
		5: {ID: 5, Lemma: "epsilon", Gloss: "fifth", Level: "A1"},
	}}
}

func (v *fakeVocab) GetByID(id int64) (*entities.VocabItem, error) {
	it, ok := v.items[id]
	if !ok {
		return nil, errors.New("vocab item not found")
	}
	return it, nil
}

func (v *fakeVocab) SameLevelDistractors(target *entities.VocabItem, exclude map[int64]bool, count int) []string {
	var out []string
	for id := int64(1); id <= int64(len(v.items)); id++ {
		it := v.items[id]
		if it == nil || it.ID == target.ID || exclude[it.ID] {
			continue
		}
		out = append(out, it.Gloss)
		if len(out) >= count {
			break
		}
	}
	return out
}

// fakeQueue records enqueued jobs, replacing duplicates by key like the real
// delayed queue.
type fakeQueue struct {
	jobs map[string]fakeJob
}

type fakeJob struct {
	payload any
	delay   time.Duration
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[string]fakeJob)}
}

func (q *fakeQueue) Enqueue(key string, payload any, delay time.Duration) {
	q.jobs[key] = fakeJob{payload: payload, delay: delay}
}

// manualClock drives a TimeKeeper from a settable wall time.
type manualClock struct {
	now time.Time
}

func newManualKeeper(start time.Time) (*srs.TimeKeeper, *manualClock) {
	mc := &manualClock{now: start}
	return srs.NewTimeKeeperWithNow(func() time.Time { return mc.now }), mc
}

func (m *manualClock) advance(d time.Duration) { m.now = m.now.Add(d) }

var testLogger = zap.NewNop()

func seoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		panic(err)
	}
	return loc
}
