package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"gpodo/utils"
)

// UpgradeTallyStream authorizes a live tally subscription before the
// websocket handshake.
func (vc *VotingController) UpgradeTallyStream(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session ID")
	}

	session, err := vc.loadSession(c, sessionID)
	if err != nil {
		return respondError(c, err)
	}
	acc, err := vc.access(c.UserContext(), session.GroupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanView {
		return respondError(c, ErrNoAccess)
	}

	tally, err := utils.LoadSessionTally(vc.DB.WithContext(c.UserContext()), session)
	if err != nil {
		return respondError(c, err)
	}
	c.Locals("session_id", sessionID)
	c.Locals("tally", tally)
	return c.Next()
}

// StreamTally sends the current tally, then every update until the
// client goes away.
func (vc *VotingController) StreamTally(conn *websocket.Conn) {
	defer conn.Close()

	sessionID, _ := conn.Locals("session_id").(uint)
	tally, _ := conn.Locals("tally").(*utils.SessionTally)
	if sessionID == 0 {
		return
	}

	if err := conn.WriteJSON(utils.TallyMessage{Type: "tally", Tally: tally}); err != nil {
		vc.Logger.WithError(err).Debug("initial tally write failed")
		return
	}

	cancel := vc.Hub.Subscribe(sessionID, conn)
	defer cancel()

	// Clients only listen; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
