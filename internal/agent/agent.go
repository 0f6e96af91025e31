// Package agent assembles the tracking agent from configuration and runs
// it: login, interval bootstrap, push channel, the session coordinator and
// the optional loopback status API.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/op/go-logging"

	"github.com/worktrack/agent/internal/api"
	"github.com/worktrack/agent/internal/config"
	"github.com/worktrack/agent/internal/device"
	"github.com/worktrack/agent/internal/idle"
	"github.com/worktrack/agent/internal/localapi"
	"github.com/worktrack/agent/internal/push"
	"github.com/worktrack/agent/internal/screen"
	"github.com/worktrack/agent/internal/session"
	"github.com/worktrack/agent/internal/tracker"
)

var log = logging.MustGetLogger("agent")

const (
	mockWidth      = 1280
	mockHeight     = 720
	mockIdlePeriod = 5 * time.Minute
)

// Agent owns every long-lived component of one agent process.
type Agent struct {
	cfg    *config.Config
	device device.Info
	api    *api.Client
	push   *push.Client
	state  *session.State
	coord  *tracker.Coordinator
}

// New builds an agent from cfg. Nothing touches the network until Run.
func New(ctx context.Context, cfg *config.Config) (*Agent, error) {
	wsURL, err := push.EndpointURL(cfg.Backend.URL, push.DefaultPath)
	if err != nil {
		return nil, fmt.Errorf("push endpoint: %w", err)
	}

	a := &Agent{
		cfg:    cfg,
		device: device.Identify(ctx),
		api:    api.New(cfg.Backend, cfg.Auth),
		state:  session.NewState(cfg.Capture.DefaultInterval),
	}
	a.api.SetDevice(a.device)

	var (
		grabber screen.Grabber
		idleSrc tracker.IdleSource
	)
	if cfg.Mock {
		log.Notice("mock mode: synthetic screen and idle source")
		grabber = screen.NewMockGrabber(mockWidth, mockHeight)
		idleSrc = idle.NewMockSource(mockIdlePeriod)
	} else {
		grabber = screen.NewCommandGrabber(cfg.Capture.Command)
		idleSrc = idle.NewCommandSource(cfg.Idle.Command)
	}

	a.push = push.New(push.Options{
		URL:       wsURL,
		UserID:    cfg.Auth.Email,
		Role:      cfg.Auth.Role,
		AgentID:   a.device.AgentID,
		Token:     a.api.Token,
		OnMessage: a.handlePush,
		OnState:   a.onPushState,
	})

	a.coord = tracker.New(a.state, tracker.Deps{
		Capturer: &screen.Capturer{
			Grabber: grabber,
			Encoder: screen.Encoder{
				FullQuality:    cfg.Capture.FullQuality,
				PreviewQuality: cfg.Capture.PreviewQuality,
				PreviewWidth:   cfg.Capture.PreviewWidth,
				PreviewHeight:  cfg.Capture.PreviewHeight,
			},
		},
		Authority: a.api,
		Live:      a.push,
		Idle:      idleSrc,
	}, tracker.Options{
		EmployeeID:        cfg.Auth.Email,
		Tick:              cfg.Loop.Tick,
		LiveInterval:      cfg.Live.Interval,
		HeartbeatInterval: cfg.Heartbeat.Interval,
		FailureThreshold:  cfg.Health.FailureThreshold,
	})
	return a, nil
}

// Coordinator exposes the session coordinator for presentation layers.
func (a *Agent) Coordinator() *tracker.Coordinator { return a.coord }

// Device returns the host identity reported to the backend.
func (a *Agent) Device() device.Info { return a.device }

// Bootstrap logs in and asks the backend for an assigned interval. An
// assignment is queued for the coordinator, which starts tracking when it
// applies it. Only a login failure is fatal.
func (a *Agent) Bootstrap(ctx context.Context) error {
	if err := a.api.Login(ctx); err != nil {
		return err
	}

	secs, assigned, err := a.api.CaptureInterval(ctx)
	switch {
	case err != nil:
		log.Warningf("could not fetch capture interval, waiting for assignment: %v", err)
	case !assigned:
		log.Info("no capture interval assigned yet, waiting for manager")
	default:
		log.Infof("capture interval on record: %ds", secs)
		return a.coord.Enqueue(tracker.Event{Kind: tracker.EventIntervalAssigned, IntervalSeconds: secs})
	}
	return nil
}

// Run bootstraps, then drives the push channel and coordinator until ctx
// is cancelled. Tracking is stopped and the backend notified on the way out.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Bootstrap(ctx); err != nil {
		a.coord.Close()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.push.Run(ctx)
	}()

	if a.cfg.Status.Addr != "" {
		a.serveStatus(ctx, &wg)
	}

	err := a.coord.Run(ctx)
	wg.Wait()
	return err
}

// serveStatus starts the loopback status API. A listen failure is logged and
// the agent keeps running without it.
func (a *Agent) serveStatus(ctx context.Context, wg *sync.WaitGroup) {
	updates, unsubscribe := a.coord.Subscribe()
	b := localapi.NewBroadcaster(a.coord, a.cfg.Status.Throttle)
	h := localapi.NewServer(a.coord, b, a.cfg.Status.Token).Handler()

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer unsubscribe()
		b.Run(ctx, updates)
	}()
	go func() {
		defer wg.Done()
		if err := localapi.ListenAndServe(ctx, a.cfg.Status.Addr, h); err != nil {
			log.Errorf("status API: %v", err)
		}
	}()
}

func (a *Agent) onPushState(connected bool, err error) {
	a.coord.SetPushConnected(connected, err)
}

// handlePush turns inbound push messages into coordinator events.
func (a *Agent) handlePush(msg push.Message) {
	switch msg.Type {
	case push.TypeIntervalAssigned:
		var p push.IntervalAssigned
		if err := msg.Decode(&p); err != nil {
			log.Warningf("bad %s payload: %v", msg.Type, err)
			return
		}
		if p.EmployeeID != "" && p.EmployeeID != a.cfg.Auth.Email {
			log.Debugf("ignoring interval assignment for %s", p.EmployeeID)
			return
		}
		a.coord.Enqueue(tracker.Event{Kind: tracker.EventIntervalAssigned, IntervalSeconds: p.IntervalSeconds})

	case push.TypeLiveInitiate, push.TypeLiveTerminate:
		var p push.LiveSignal
		if err := msg.Decode(&p); err != nil {
			log.Debugf("bad %s payload: %v", msg.Type, err)
		}
		active := msg.Type == push.TypeLiveInitiate
		log.Debugf("%s by=%q reason=%q", msg.Type, p.By, p.Reason)
		a.coord.Enqueue(tracker.Event{Kind: tracker.EventLiveActivation, Active: active})

	default:
		log.Debugf("ignoring push message %q", msg.Type)
	}
}
