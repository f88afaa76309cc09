package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/manav03panchal/timely/internal/api"
	"github.com/manav03panchal/timely/internal/auth"
	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/gateway"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/notify"
	"github.com/manav03panchal/timely/internal/realtime"
	"github.com/manav03panchal/timely/internal/reconcile"
	"github.com/manav03panchal/timely/internal/storage"
	"github.com/manav03panchal/timely/internal/store"
)

// Components is the alarm engine of one daemon process, wired together.
type Components struct {
	Client     *api.Client
	Session    *auth.Session
	Gateway    *gateway.Local
	Service    *reconcile.Service
	Realtime   *realtime.Manager
	Dispatcher *notify.Dispatcher
	Webhooks   *notify.RetryQueue
	Metrics    *Metrics
	Health     *HealthChecker

	events chan model.AlarmEvent
	wg     sync.WaitGroup
}

// Assemble builds every component on top of db.
func Assemble(db *storage.DB, settings *config.Settings, version string) (*Components, error) {
	c := &Components{
		Metrics: NewMetrics(),
		Health:  NewHealthChecker(version),
		events:  make(chan model.AlarmEvent, config.Global.Realtime.EventBuffer),
	}

	c.Client = api.New(api.Options{BaseURL: settings.APIURL})
	session, err := auth.New(c.Client, db)
	if err != nil {
		return nil, err
	}
	c.Session = session
	c.Client.SetTokenSource(session)

	c.Gateway = gateway.NewLocal(gateway.WithRepo(storage.NewNativeRepo(db)))

	webhookRepo := storage.NewWebhookRepo(db)
	c.Dispatcher = notify.NewDispatcher(webhookRepo)
	c.Webhooks = notify.NewRetryQueue(notify.NewHTTPClient())
	c.Dispatcher.SetRetryQueue(c.Webhooks)

	c.Service = reconcile.NewService(c.Client, c.Gateway, store.New(),
		reconcile.WithDeviceID(session.DeviceID()),
		reconcile.WithListening(func() { c.Gateway.FirePastDue() }),
		reconcile.WithEngineOptions(
			reconcile.WithObserver(c.Metrics),
			reconcile.WithNotifier(c.onNotice),
		),
	)

	c.Realtime = realtime.NewManager(settings.SocketURL, session, session.DeviceID())
	c.Client.SetSocketID(c.Realtime.SessionID)

	c.Metrics.Register(&stateCollector{svc: c.Service, connected: c.Realtime.Connected})
	c.Health.SetState(func() (reconcile.StatusCounts, int, int) {
		return reconcile.CountStatuses(c.Service.List()), c.Service.Corrections().Stats().QueueSize, c.Webhooks.Pending()
	})
	c.Health.AddCheck("alarm_permission", func() error {
		status, err := c.Gateway.CheckPermissions(context.Background())
		if err != nil {
			return err
		}
		if status != gateway.PermissionGranted {
			return fmt.Errorf("alarm permission %s", status)
		}
		return nil
	})
	return c, nil
}

// Control exposes the service and the session over the control API.
func (c *Components) Control() *Control {
	return &Control{Alarms: c.Service, Session: c.Session}
}

// Run starts the native gateway and the webhook queue, restores the stored
// session and drives the reconcile service until ctx ends. Alarms that came
// due while the daemon was down ring once every listener is subscribed.
func (c *Components) Run(ctx context.Context) error {
	sub, err := c.Gateway.Listen(model.NativeAlarmTriggered, func(ev model.NativeEvent) {
		c.Metrics.ObserveRing()
		c.goNotify(func(ctx context.Context) {
			for _, r := range c.Dispatcher.SendNotification(ctx, model.NewRingNotification(ev)) {
				c.Metrics.ObserveNotification(r.Error)
			}
		})
	})
	if err != nil {
		return err
	}
	if err := c.Gateway.Start(ctx); err != nil {
		sub.Remove()
		return err
	}
	c.Webhooks.Start(ctx)
	defer c.Webhooks.Stop()

	if c.Session.Restore(ctx) {
		logging.Info("session restored", logging.KeyDeviceID, c.Session.DeviceID())
	} else {
		logging.Warn("not logged in; alarms sync after `timely login`")
	}

	fwdCtx, stopForward := context.WithCancel(ctx)
	c.wg.Add(1)
	go c.forwardEvents(fwdCtx)

	err = c.Service.Run(ctx, c.Session, &eventSource{run: c.Realtime.Run, events: c.events})

	// No ring or notice can start a delivery once the gateway is down.
	sub.Remove()
	c.Gateway.Stop()
	stopForward()
	c.wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Reload fetches the alarm list again and reconciles every record. It does
// nothing while logged out.
func (c *Components) Reload(ctx context.Context) {
	if !c.Session.IsAuthenticated() {
		return
	}
	alarms, err := c.Service.Load(ctx)
	if err != nil {
		logging.Warn("reload failed", logging.KeyError, err)
		return
	}
	logging.Info("alarms reloaded", "count", len(alarms))
}

// forwardEvents counts realtime events on their way to the service.
func (c *Components) forwardEvents(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.Realtime.Events():
			c.Metrics.ObserveRealtime(ev.Type)
			select {
			case c.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// onNotice logs reconcile notices and forwards the ones worth a webhook.
func (c *Components) onNotice(n reconcile.Notice) {
	logger := logging.Component("daemon").With(logging.KeyAlarmID, n.AlarmID)
	var notification *model.Notification
	switch n.Level {
	case reconcile.NoticeError:
		logger.Error(n.Message, logging.KeyError, n.Err)
		if n.AlarmID != 0 {
			notification = model.NewNotification(model.NotifySyncConflict, "Alarm not scheduled", n.Message)
		}
	case reconcile.NoticeWarning:
		logger.Warn(n.Message)
	default:
		logger.Info(n.Message)
		if n.AlarmID != 0 {
			notification = model.NewNotification(model.NotifyAlarmDisabled, "Alarm disabled", n.Message)
		}
	}
	if notification == nil {
		return
	}
	notification.WithField("Alarm", fmt.Sprintf("%d", n.AlarmID))
	if a, ok := c.Service.Store().Get(n.AlarmID); ok {
		notification.WithField("Title", a.DisplayTitle())
	}
	c.goNotify(func(ctx context.Context) {
		for _, r := range c.Dispatcher.SendNotification(ctx, notification) {
			c.Metrics.ObserveNotification(r.Error)
		}
	})
}

// goNotify runs a webhook delivery off the caller's goroutine.
func (c *Components) goNotify(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), config.Global.HTTP.Timeout)
		defer cancel()
		fn(ctx)
	}()
}

// eventSource adapts the realtime manager to the counted event stream.
type eventSource struct {
	run    func(context.Context)
	events chan model.AlarmEvent
}

func (s *eventSource) Run(ctx context.Context) { s.run(ctx) }

func (s *eventSource) Events() <-chan model.AlarmEvent { return s.events }
