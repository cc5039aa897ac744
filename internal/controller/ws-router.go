package controller

import (
	"github.com/lockstep/server/pkg/wsrouter"
)

const (
	typeAlive          = "alive"
	typeUpdateUserInfo = "update-user-info"
	typeSyncEvent      = "sync-event"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())
	mux.OnError(c.wsErrorHandler)

	wsrouter.Handle(mux, typeAlive, c.handleAlive)
	wsrouter.Handle(mux, typeUpdateUserInfo, c.handleUpdateUserInfo)
	wsrouter.Handle(mux, typeSyncEvent, c.handleSyncEvent)

	return mux
}
