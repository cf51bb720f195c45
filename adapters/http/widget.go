package http

import (
	_ "embed"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed widget.html
var widgetPage string

// Widget serves the single-page chat widget.
func (h *ChatHandler) Widget(c echo.Context) error {
	return c.HTML(http.StatusOK, widgetPage)
}
