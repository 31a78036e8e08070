// Package inmemdb is a process-local store used in development and tests.
// Rows keep their insertion order, like a table scanned without ORDER BY.
package inmemdb

import (
	"sync"

	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
)

type (
	DB struct {
		tracks       *table[curriculum.Track]
		cohorts      *table[curriculum.Cohort]
		weeks        *table[curriculum.Week]
		lessons      *table[curriculum.Lesson]
		assignments  *table[curriculum.Assignment]
		students     *table[enrollment.Student]
		enrollments  *table[enrollment.Enrollment]
		whitelist    *table[enrollment.WhitelistEntry]
		submissions  *table[submission.Submission]
		partnerships *table[partnership.Partnership]
		calls        *table[claritycall.Request]
		accounts     *table[account]
	}

	table[T any] struct {
		rows  []T
		id    func(T) string
		mutex sync.RWMutex
	}
)

func newTable[T any](id func(T) string) *table[T] {
	return &table[T]{id: id}
}

func Open() *DB {
	return &DB{
		tracks:       newTable(func(t curriculum.Track) string { return t.ID }),
		cohorts:      newTable(func(c curriculum.Cohort) string { return c.ID }),
		weeks:        newTable(func(w curriculum.Week) string { return w.ID }),
		lessons:      newTable(func(l curriculum.Lesson) string { return l.ID }),
		assignments:  newTable(func(a curriculum.Assignment) string { return a.ID }),
		students:     newTable(func(s enrollment.Student) string { return s.ID }),
		enrollments:  newTable(func(e enrollment.Enrollment) string { return e.ID }),
		whitelist:    newTable(func(we enrollment.WhitelistEntry) string { return we.ID }),
		submissions:  newTable(func(s submission.Submission) string { return s.ID }),
		partnerships: newTable(func(p partnership.Partnership) string { return p.ID }),
		calls:        newTable(func(r claritycall.Request) string { return r.ID }),
		accounts:     newTable(func(a account) string { return a.ID }),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.tracks.reset()
	db.cohorts.reset()
	db.weeks.reset()
	db.lessons.reset()
	db.assignments.reset()
	db.students.reset()
	db.enrollments.reset()
	db.whitelist.reset()
	db.submissions.reset()
	db.partnerships.reset()
	db.calls.reset()
	db.accounts.reset()
}

func (t *table[T]) reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.rows = nil
}

// filter returns a copy of the rows matching keep, in insertion order.
func (t *table[T]) filter(keep func(T) bool) []T {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	rows := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if keep == nil || keep(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

func (t *table[T]) find(keep func(T) bool, notFound error) (T, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	for _, row := range t.rows {
		if keep(row) {
			return row, nil
		}
	}
	var zero T
	return zero, notFound
}

func (t *table[T]) get(id string, notFound error) (T, error) {
	return t.find(func(row T) bool { return t.id(row) == id }, notFound)
}

func (t *table[T]) insert(row T) T {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.rows = append(t.rows, row)
	return row
}

// insertIf appends row only if check passes while the table is locked.
func (t *table[T]) insertIf(row T, check func(rows []T) error) (T, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if err := check(t.rows); err != nil {
		var zero T
		return zero, err
	}
	t.rows = append(t.rows, row)
	return row, nil
}

func (t *table[T]) update(row T, notFound error) (T, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	id := t.id(row)
	for i := range t.rows {
		if t.id(t.rows[i]) == id {
			t.rows[i] = row
			return row, nil
		}
	}
	var zero T
	return zero, notFound
}

// delete removes every row matching drop and reports how many were removed.
func (t *table[T]) delete(drop func(T) bool) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	kept := t.rows[:0]
	for _, row := range t.rows {
		if !drop(row) {
			kept = append(kept, row)
		}
	}
	n := len(t.rows) - len(kept)
	var zero T
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = zero
	}
	t.rows = kept
	return n
}

func (t *table[T]) deleteByID(id string, notFound error) error {
	if t.delete(func(row T) bool { return t.id(row) == id }) == 0 {
		return notFound
	}
	return nil
}

func in(ids []string) func(string) bool {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}
