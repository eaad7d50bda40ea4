package rollback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwindRunsInReverseOrder(t *testing.T) {
	l := New()
	var order []string
	for _, name := range []string{"p0", "p1", "p2"} {
		name := name
		l.Register(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	failures := l.Unwind()
	assert.Empty(t, failures)
	assert.Equal(t, []string{"p2", "p1", "p0"}, order)
}

func TestUnwindContinuesPastFailingAction(t *testing.T) {
	l := New()
	var order []string
	l.Register("first", func() error {
		order = append(order, "first")
		return nil
	})
	l.Register("broken", func() error {
		order = append(order, "broken")
		return errors.New("rm failed")
	})
	l.Register("last", func() error {
		order = append(order, "last")
		return nil
	})

	failures := l.Unwind()
	assert.Equal(t, []string{"last", "broken", "first"}, order)
	assert.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].Label)
	assert.EqualError(t, failures[0].Err, "rm failed")
}

func TestUnwindRecoversPanickingAction(t *testing.T) {
	l := New()
	ran := false
	l.Register("earlier", func() error {
		ran = true
		return nil
	})
	l.Register("panics", func() error {
		panic("boom")
	})

	failures := l.Unwind()
	assert.True(t, ran)
	assert.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "boom")
}

func TestUnwindIsIdempotent(t *testing.T) {
	l := New()
	calls := 0
	l.Register("once", func() error {
		calls++
		return nil
	})

	assert.Empty(t, l.Unwind())
	assert.Empty(t, l.Unwind())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, l.Len())
}

func TestDiscardSkipsActions(t *testing.T) {
	l := New()
	calls := 0
	l.Register("skipped", func() error {
		calls++
		return nil
	})

	l.Discard()
	assert.Empty(t, l.Unwind())
	assert.Equal(t, 0, calls)
}
