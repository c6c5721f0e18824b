package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/pathcanary/rollback-go/internal/api/v1"
	"github.com/pathcanary/rollback-go/internal/api/ws"
)

func registerAPIRoutes(api huma.API, store DataStore) {
	v1.RegisterFlagRoutes(api, store)
	v1.RegisterAuditRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/ws/flags", hub.ServeFlags)
}
