package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

// HandleRoomQR serves a PNG QR code of the room's invite URL.
func (g *Gateway) HandleRoomQR(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	invite := strings.TrimSuffix(g.inviteBase, "/") + "/room/" + url.PathEscape(roomID)
	png, err := qrcode.Encode(invite, qrcode.Medium, 256)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("encode invite QR")
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// HandleRoomStatus returns the room's current sync status as JSON.
func (g *Gateway) HandleRoomStatus(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g.status.Get(roomID)); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("encode sync status response")
	}
}
