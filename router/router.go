package router

import (
	"net/http"

	"download-counter-go/middleware"
)

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
}

type Handler interface {
	Setup(r *Router)
}

// New 创建路由，middlewares 作用于所有路由，第一个在最外层
func New(middlewares ...middleware.Middleware) *Router {
	mux := http.NewServeMux()
	return &Router{
		mux:     mux,
		handler: middleware.Chain(middlewares...)(mux),
	}
}

func (r *Router) Setup(h Handler) {
	h.Setup(r)
}

func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

func (r *Router) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	r.mux.HandleFunc(pattern, handler)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}
