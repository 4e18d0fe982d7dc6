package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/familytasks/internal/auth"
)

// HandleWebSocket upgrades the request and subscribes it to the family of the
// authenticated session. A ?family parameter naming another family is
// refused.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		familyID := auth.FamilyID(r.Context())
		if familyID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if q := r.URL.Query().Get("family"); q != "" && q != strconv.FormatInt(familyID, 10) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // family devices connect from the LAN
		})
		if err != nil {
			logger.Warn("websocket accept", "family_id", familyID, "error", err)
			return
		}

		logger.Debug("websocket connected", "family_id", familyID)
		NewClient(hub, conn, familyID).Run(r.Context())
		logger.Debug("websocket disconnected", "family_id", familyID)
	}
}
