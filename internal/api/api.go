package api

import (
	"context"

	"acornbox/internal/config"
	"acornbox/internal/manager"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	Boxes   *manager.BoxManager
	Replies *manager.ReplyManager
	Store   Pinger
	Cfg     *config.Config
}

func NewAPI(boxes *manager.BoxManager, replies *manager.ReplyManager, store Pinger, cfg *config.Config) *API {
	return &API{
		Boxes:   boxes,
		Replies: replies,
		Store:   store,
		Cfg:     cfg,
	}
}
