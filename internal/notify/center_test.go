package notify

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func countUnread(c *Center) int {
	n := 0
	for _, e := range c.Items() {
		if !e.Read {
			n++
		}
	}
	return n
}

func TestAddAssignsFieldsAndCountsUnread(t *testing.T) {
	c := NewCenter()
	n := c.Add(Input{Severity: SeverityInfo, Title: "Yeni Fatura", Message: "FTR-001 oluşturuldu", ActionURL: "/faturalar/1"})

	require.NotEmpty(t, n.ID)
	require.False(t, n.Read)
	require.Equal(t, 1, c.Unread())

	items := c.Items()
	require.Len(t, items, 1)
	require.Equal(t, "Yeni Fatura", items[0].Title)
	require.Equal(t, "/faturalar/1", items[0].ActionURL)
}

func TestCapEvictsOldestKeepsNewestFirst(t *testing.T) {
	c := NewCenter()
	for i := 0; i < 60; i++ {
		c.Add(Input{Severity: SeverityInfo, Title: fmt.Sprintf("n-%d", i)})
	}

	items := c.Items()
	require.Len(t, items, 50)
	require.Equal(t, "n-59", items[0].Title)
	require.Equal(t, "n-10", items[49].Title)
	for _, e := range items {
		for i := 0; i < 10; i++ {
			require.NotEqual(t, fmt.Sprintf("n-%d", i), e.Title)
		}
	}
	require.Equal(t, 50, c.Unread())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	c := NewCenter()
	n := c.Add(Input{Severity: SeverityWarning, Title: "Vergi Hatırlatması"})
	require.Equal(t, 1, c.Unread())

	c.MarkRead(n.ID)
	require.Equal(t, 0, c.Unread())
	c.MarkRead(n.ID)
	require.Equal(t, 0, c.Unread())
	c.MarkRead("missing-id")
	require.Equal(t, 0, c.Unread())
}

func TestRemoveAdjustsUnreadOnlyForUnreadEntries(t *testing.T) {
	c := NewCenter()
	a := c.Add(Input{Severity: SeverityInfo, Title: "a"})
	b := c.Add(Input{Severity: SeverityInfo, Title: "b"})

	c.MarkRead(a.ID)
	require.Equal(t, 1, c.Unread())

	c.Remove(a.ID)
	require.Equal(t, 1, c.Unread())
	c.Remove(b.ID)
	require.Equal(t, 0, c.Unread())
	require.Empty(t, c.Items())
}

func TestMarkAllReadAndClearAll(t *testing.T) {
	c := NewCenter()
	for i := 0; i < 5; i++ {
		c.Add(Input{Severity: SeverityInfo, Title: fmt.Sprintf("n-%d", i)})
	}

	c.MarkAllRead()
	require.Equal(t, 0, c.Unread())
	for _, e := range c.Items() {
		require.True(t, e.Read)
	}

	c.ClearAll()
	require.Empty(t, c.Items())
	require.Equal(t, 0, c.Unread())
}

// The unread counter must equal the number of unread entries after any
// operation sequence, without ever going negative.
func TestUnreadCounterMatchesEntriesUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := NewCenter()
	var ids []string

	for i := 0; i < 2000; i++ {
		switch rng.Intn(6) {
		case 0, 1:
			n := c.Add(Input{Severity: SeverityInfo, Title: fmt.Sprintf("n-%d", i)})
			ids = append(ids, n.ID)
		case 2:
			if len(ids) > 0 {
				c.MarkRead(ids[rng.Intn(len(ids))])
			}
		case 3:
			if len(ids) > 0 {
				c.Remove(ids[rng.Intn(len(ids))])
			}
		case 4:
			if rng.Intn(20) == 0 {
				c.MarkAllRead()
			}
		case 5:
			if rng.Intn(50) == 0 {
				c.ClearAll()
			}
		}

		require.GreaterOrEqual(t, c.Unread(), 0)
		require.Equal(t, countUnread(c), c.Unread())
		require.LessOrEqual(t, len(c.Items()), 50)
	}
}

func TestIDsAreUniqueUnderBursts(t *testing.T) {
	c := NewCenterWithNow(func() time.Time { return time.UnixMilli(1700000000000) })
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := c.Add(Input{Severity: SeverityInfo, Title: "burst"})
		require.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
	}
}

func TestOnChangeFires(t *testing.T) {
	c := NewCenter()
	var calls int
	c.SetOnChange(func() { calls++ })

	n := c.Add(Input{Severity: SeverityInfo, Title: "x"})
	c.MarkRead(n.ID)
	c.MarkRead(n.ID) // no-op, no callback
	require.Equal(t, 2, calls)
}
