package rest

import "github.com/gin-gonic/gin"

type HttpMethod int

const (
	GET HttpMethod = iota
	POST
	PUT
	PATCH
	DELETE
)

func (m HttpMethod) String() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case PATCH:
		return "PATCH"
	case DELETE:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

type Route struct {
	Method      HttpMethod
	Path        string
	HandlerFunc gin.HandlerFunc
	Group       string
	// Middleware runs only for this route, before HandlerFunc.
	Middleware []gin.HandlerFunc
}

func NewRoute(method HttpMethod, group, path string, handler gin.HandlerFunc, middleware ...gin.HandlerFunc) Route {
	return Route{
		Method:      method,
		Path:        path,
		Group:       group,
		HandlerFunc: handler,
		Middleware:  middleware,
	}
}

func (r Route) Handlers() []gin.HandlerFunc {
	return append(append([]gin.HandlerFunc{}, r.Middleware...), r.HandlerFunc)
}

// GlobalGroup applies a middleware to every route.
const GlobalGroup = "*"

// Middleware is applied to every route of Group, or to all routes for GlobalGroup.
type Middleware struct {
	Handler gin.HandlerFunc
	Group   string
}

func NewMiddleware(group string, handler gin.HandlerFunc) Middleware {
	return Middleware{Group: group, Handler: handler}
}
