package handlers

import (
	"embed"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/template/html/v2"
)

//go:embed views/*.html
var viewsFS embed.FS

// ViewEngine returns the template engine the server mounts as its
// fiber.Config Views. Templates ship inside the binary.
func ViewEngine() *html.Engine {
	return html.NewFileSystem(http.FS(viewsFS), ".html")
}

// handleOverview renders the dashboard shell. The page loads its
// sections from the JSON API client side, so a broken warehouse still
// serves a page with degraded panels.
// GET /
func (a *API) handleOverview(c fiber.Ctx) error {
	return c.Render("views/dashboard", fiber.Map{
		"Title":          "Smart Events",
		"DefaultEventID": a.cfg.EventID,
	})
}
