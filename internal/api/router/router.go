package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/plantphoto/internal/api/handlers/photo"
	"github.com/aliskhannn/plantphoto/internal/middleware"
)

// Setup registers the photo routes on a new engine.
func Setup(h *photo.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogger())
	r.Use(ginext.Recovery())

	r.GET("/health", h.Health)

	api := r.Group("/api/photos")

	api.POST("", h.Upload)             // uploading photo for analysis
	api.POST("/check", h.Check)        // synchronous check, nothing stored
	api.GET("/:id", h.Get)             // getting photo record by id
	api.GET("/:id/image", h.Image)     // normalized image
	api.GET("/:id/preview", h.Preview) // verdict preview
	api.DELETE("/:id", h.Delete)       // deleting photo by id

	return r
}
