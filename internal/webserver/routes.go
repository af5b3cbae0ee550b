package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type routeDef struct {
	method  string
	path    string
	handler echo.HandlerFunc
	public  bool
}

// routes collected by the api packages' init functions, installed when a
// server is built.
var routes []routeDef

func addRoute(method, path string, h echo.HandlerFunc, public bool) {
	routes = append(routes, routeDef{method: method, path: path, handler: h, public: public})
}

// ApiGET registers an authenticated GET route under /api/v1
func ApiGET(path string, h echo.HandlerFunc) { addRoute(http.MethodGet, path, h, false) }

func ApiPOST(path string, h echo.HandlerFunc) { addRoute(http.MethodPost, path, h, false) }

func ApiPUT(path string, h echo.HandlerFunc) { addRoute(http.MethodPut, path, h, false) }

func ApiDELETE(path string, h echo.HandlerFunc) { addRoute(http.MethodDelete, path, h, false) }

// PubGET registers a public GET route; a valid bearer token still
// identifies the caller.
func PubGET(path string, h echo.HandlerFunc) { addRoute(http.MethodGet, path, h, true) }

func PubPOST(path string, h echo.HandlerFunc) { addRoute(http.MethodPost, path, h, true) }
