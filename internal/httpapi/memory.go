package httpapi

import (
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
)

type memoryResponse struct {
	RSSBytes     uint64 `json:"rss_bytes"`
	SessionCount int    `json:"session_count"`
}

// handleMemory reports process memory alongside the live session count,
// for correlating footprint with retained histories.
func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, memoryResponse{
		RSSBytes:     residentSetBytes(),
		SessionCount: s.store.Count(),
	})
}

// residentSetBytes reads VmRSS from /proc/self/status. Off Linux it falls
// back to the Go runtime's reserved total.
func residentSetBytes() uint64 {
	if data, err := os.ReadFile("/proc/self/status"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.HasPrefix(line, "VmRSS:") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				break
			}
			kb, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				break
			}
			return kb * 1024
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}
