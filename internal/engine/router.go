package engine

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the generic CRUD routes. Middleware (if any) runs
// before every entity route.
func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api")
	for _, mw := range middleware {
		api.Use(mw)
	}

	api.Get("/:entity", h.List)
	api.Get("/:entity/:id", h.GetByID)
	api.Post("/:entity", h.Create)
	api.Put("/:entity/:id", h.Update)
	api.Delete("/:entity/:id", h.Delete)
}
