package fixgateway

import (
	"context"
	"sync"

	"github.com/joripage/go_util/pkg/shardqueue"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/fix44/ordercancelreplacerequest"
	"github.com/quickfixgo/fix44/ordercancelrequest"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"go.uber.org/zap"
)

// Application implements the quickfix.Application interface
type Application struct {
	*quickfix.MessageRouter
	cfg        *FixGatewayConfig
	dispatcher chan *inboundMsg
	shardQueue *shardqueue.Shardqueue
	done       chan struct{}
	stopOnce   sync.Once

	gateway *FixGateway
	logger  *logging.Logger
}

type inboundMsg struct {
	msg       *quickfix.Message
	sessionID quickfix.SessionID
}

const (
	defaultShards    = 16
	defaultQueueSize = 100_000
)

func newApplication(cfg *FixGatewayConfig, gateway *FixGateway, logger *logging.Logger) *Application {
	app := &Application{
		MessageRouter: quickfix.NewMessageRouter(),
		cfg:           cfg,
		done:          make(chan struct{}),
		gateway:       gateway,
		logger:        logger,
	}

	app.AddRoute(newordersingle.Route(app.onNewOrderSingle))
	app.AddRoute(ordercancelrequest.Route(app.onOrderCancelRequest))
	app.AddRoute(ordercancelreplacerequest.Route(app.onOrderCancelReplaceRequest))

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if cfg.EnableShardQueue {
		shards := cfg.Shards
		if shards <= 0 {
			shards = defaultShards
		}
		app.shardQueue = shardqueue.NewShardQueue(shards, queueSize)
		app.shardQueue.Start(func(msg interface{}) error {
			if v, ok := msg.(*inboundMsg); ok {
				app.route(v)
			}
			return nil
		})
	} else if cfg.EnableQueue {
		app.dispatcher = make(chan *inboundMsg, queueSize)
		go app.runDispatcher()
	}

	return app
}

func (a *Application) stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

// OnCreate implemented as part of Application interface
func (a *Application) OnCreate(sessionID quickfix.SessionID) {}

// OnLogon implemented as part of Application interface
func (a *Application) OnLogon(sessionID quickfix.SessionID) {
	a.logger.Info(context.Background(), "fix logon", zap.String("session", sessionID.String()))
}

// OnLogout implemented as part of Application interface
func (a *Application) OnLogout(sessionID quickfix.SessionID) {
	a.logger.Info(context.Background(), "fix logout", zap.String("session", sessionID.String()))
}

// ToAdmin implemented as part of Application interface
func (a *Application) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}

// ToApp implemented as part of Application interface
func (a *Application) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}

// FromAdmin implemented as part of Application interface
func (a *Application) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

// FromApp implemented as part of Application interface, uses Router on incoming application messages.
// With a queue enabled, messages of one replace chain keep their order on a single shard.
func (a *Application) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) (reject quickfix.MessageRejectError) {
	switch {
	case a.shardQueue != nil:
		a.shardQueue.Shard(a.routingKey(msg, sessionID), &inboundMsg{msg, sessionID})
		return nil
	case a.dispatcher != nil:
		select {
		case a.dispatcher <- &inboundMsg{msg, sessionID}:
		case <-a.done:
		}
		return nil
	}

	return a.Route(msg, sessionID)
}

func (a *Application) routingKey(msg *quickfix.Message, sessionID quickfix.SessionID) string {
	if orig, err := msg.Body.GetString(tag.OrigClOrdID); err == nil && orig != "" {
		return a.gateway.rootClOrdID(orig)
	}
	if clOrdID, err := msg.Body.GetString(tag.ClOrdID); err == nil && clOrdID != "" {
		return clOrdID
	}
	if msgType, err := msg.Header.GetString(tag.MsgType); err == nil {
		return "MSGTYPE:" + msgType
	}
	return sessionID.String()
}

func (a *Application) runDispatcher() {
	for {
		select {
		case msg := <-a.dispatcher:
			a.route(msg)
		case <-a.done:
			return
		}
	}
}

func (a *Application) route(in *inboundMsg) {
	if err := a.Route(in.msg, in.sessionID); err != nil {
		a.logger.Warn(context.Background(), "route fix message",
			zap.String("session", in.sessionID.String()), zap.Error(err))
	}
}

func (a *Application) onNewOrderSingle(msg newordersingle.NewOrderSingle, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	a.gateway.AddOrder(context.Background(), parseNewOrderSingle(msg, sessionID))
	return nil
}

func (a *Application) onOrderCancelRequest(msg ordercancelrequest.OrderCancelRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	a.gateway.CancelOrder(context.Background(), parseOrderCancelRequest(msg, sessionID))
	return nil
}

func (a *Application) onOrderCancelReplaceRequest(msg ordercancelreplacerequest.OrderCancelReplaceRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	a.gateway.ModifyOrder(context.Background(), parseOrderCancelReplaceRequest(msg, sessionID))
	return nil
}
