package core

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMemInfo(t *testing.T) {
	in := "MemTotal:        2048 kB\nMemFree:          100 kB\nMemAvailable:     512 kB\n"
	used, total := parseMemInfo(bufio.NewScanner(strings.NewReader(in)))
	assert.Equal(t, uint64(1536*1024), used)
	assert.Equal(t, uint64(2048*1024), total)

	used, total = parseMemInfo(bufio.NewScanner(strings.NewReader("garbage\n")))
	assert.Zero(t, used)
	assert.Zero(t, total)
}

func TestCollectSystemStatus(t *testing.T) {
	hub := NewPresenceHub(nil)
	hub.Join(User{ID: "2", Username: "bob"})
	hub.Join(User{ID: "1", Username: "alice"})
	hub.Join(User{ID: "1", Username: "alice"})

	st := CollectSystemStatus(hub, time.Now().Add(-90*time.Second))
	assert.Equal(t, 3, st.Presence.Connected)
	assert.Equal(t, []string{"alice", "bob"}, st.Presence.Users)
	assert.GreaterOrEqual(t, st.UptimeSeconds, int64(90))

	empty := CollectSystemStatus(nil, time.Time{})
	assert.Zero(t, empty.Presence.Connected)
	assert.NotNil(t, empty.Presence.Users)
	assert.Zero(t, empty.UptimeSeconds)
}
