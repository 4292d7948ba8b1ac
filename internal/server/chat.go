package server

import (
	_ "embed"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed chat.html
var chatPage []byte

// handleChat serves the embedded single-page chat UI, which talks to
// POST /ask from the browser.
func (s *Server) handleChat(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, chatPage)
}
