package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type row struct {
	ID    string
	Other string
}

func TestIndexByAndAttach(t *testing.T) {
	tracks := []row{{ID: "t1", Other: "Frontend"}, {ID: "t2", Other: "Backend"}}
	enrollments := []row{{ID: "e1", Other: "t2"}, {ID: "e2", Other: "t1"}, {ID: "e3", Other: "t9"}}

	idx := IndexBy(tracks, func(r row) string { return r.ID })
	assert.Len(t, idx, 2)

	got := Attach(enrollments, func(r row) string { return r.Other }, idx, func(l, r row, ok bool) string {
		if !ok {
			return l.ID + ":?"
		}
		return l.ID + ":" + r.Other
	})
	assert.Equal(t, []string{"e1:Backend", "e2:Frontend", "e3:?"}, got)
}

func TestGroupByAndKeys(t *testing.T) {
	rows := []row{{ID: "a", Other: "x"}, {ID: "b", Other: "y"}, {ID: "c", Other: "x"}}

	groups := GroupBy(rows, func(r row) string { return r.Other })
	assert.Equal(t, []row{rows[0], rows[2]}, groups["x"])
	assert.Equal(t, []row{rows[1]}, groups["y"])

	assert.Equal(t, []string{"x", "y"}, Keys(rows, func(r row) string { return r.Other }))
}

func TestOrderingParam(t *testing.T) {
	ords := []DBOrdering{{Field: "created_at"}, {Field: "name", Ascending: true}}
	assert.Equal(t, "created_at.desc,name.asc", OrderingParam(ords))
	assert.Equal(t, "created_at DESC", ords[0].String())
}
