package core

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SystemStatus is the aggregate served on /status.
type SystemStatus struct {
	Presence struct {
		Connected int      `json:"connected"`
		Users     []string `json:"users"`
	} `json:"presence"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// CollectSystemStatus gathers presence counts, host memory and uptime. Every part is best-effort.
func CollectSystemStatus(hub *PresenceHub, startedAt time.Time) SystemStatus {
	var st SystemStatus
	st.Presence.Users = []string{}

	if hub != nil {
		st.Presence.Connected = hub.Count()
		seen := map[string]struct{}{}
		for _, name := range hub.Usernames() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			st.Presence.Users = append(st.Presence.Users, name)
		}
		sort.Strings(st.Presence.Users)
	}

	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return st
}

// readMemInfo returns used and total bytes from /proc/meminfo, or zeros when unavailable.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	return parseMemInfo(bufio.NewScanner(f))
}

func parseMemInfo(scanner *bufio.Scanner) (used, total uint64) {
	var memTotal, memAvailable uint64
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			memTotal = parseKiBLine(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal == 0 {
		return 0, 0
	}
	if memAvailable <= memTotal {
		used = memTotal - memAvailable
	}
	return used * 1024, memTotal * 1024
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
