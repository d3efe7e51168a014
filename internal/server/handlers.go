package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/damione1/poker-rooms/internal/security"
)

// handleCreateRoom allocates a fresh opaque room identifier. The room
// itself materializes when the first connection arrives.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate room id")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"roomId": hex.EncodeToString(buf),
	})
}

// handleRoomQR renders a QR code for the room's join URL.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("room")
	if err := security.ValidateRoomAddress(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	joinURL := fmt.Sprintf("%s://%s/rooms/%s", s.cfg.Scheme(), r.Host, roomID)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snapshot := s.metrics.Snapshot()

	status := http.StatusOK
	if snapshot.HealthStatus == "critical" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":             snapshot.HealthStatus,
		"active_connections": snapshot.ActiveConnections,
		"active_rooms":       snapshot.ActiveRooms,
		"uptime_seconds":     snapshot.UptimeSeconds,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
