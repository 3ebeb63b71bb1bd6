package webserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/uploadstore/internal/storage"
	middlewarepkg "github.com/mdouchement/uploadstore/internal/webserver/middleware"
)

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version string
	Logger  logger.Logger
	Bucket  *storage.Bucket
	// DumpRequests logs the headers of every request.
	DumpRequests bool
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.HideBanner = true
	engine.HidePort = true

	// HTML forms can only POST, `?_method=DELETE' turns them into DELETE requests.
	engine.Pre(middleware.MethodOverrideWithConfig(middleware.MethodOverrideConfig{
		Getter: middleware.MethodFromQuery("_method"),
	}))

	engine.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: streamed,
	}))
	engine.Use(middlewarepkg.Logger(ctrl.Logger))
	if ctrl.DumpRequests {
		engine.Use(middlewarepkg.Dumpper(ctrl.Logger))
	}

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	// Files
	//
	file := file{
		logger: ctrl.Logger,
		bucket: ctrl.Bucket,
	}
	router.GET("/", file.Index)
	router.POST("/uploads", file.Upload)
	router.GET("/files", file.List)
	router.GET("/files/:id", file.Show)
	router.DELETE("/files/:id", file.Delete)
	router.GET("/image/:id", file.Image)
	router.GET("/download/:id", file.Download)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}

// streamed skips the gzip compression for the routes streaming chunks.
func streamed(c echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/image/") || strings.HasPrefix(c.Path(), "/download/")
}
