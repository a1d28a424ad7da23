package dashboard

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/views"
)

type resource struct {
	kind  snapshot.Kind
	fetch func(ctx context.Context) (any, error)
}

// resources lists what view renders. The monitoring view reads config only
// on non-scheduled loads; its tick stays cheap.
func (c *Coordinator) resources(view views.View, reason Reason) []resource {
	config := resource{snapshot.Config, func(ctx context.Context) (any, error) { return c.api.GetConfig(ctx) }}

	switch view {
	case views.Monitoring:
		list := []resource{
			{snapshot.Analytics, func(ctx context.Context) (any, error) { return c.api.GetAnalytics(ctx) }},
			{snapshot.Events, func(ctx context.Context) (any, error) { return c.api.GetEvents(ctx, c.eventsHours) }},
			{snapshot.Bans, func(ctx context.Context) (any, error) { return c.api.GetBans(ctx) }},
			{snapshot.Maze, func(ctx context.Context) (any, error) { return c.api.GetMaze(ctx) }},
			{snapshot.CDP, func(ctx context.Context) (any, error) { return c.api.GetCDP(ctx) }},
			{snapshot.CDPEvents, func(ctx context.Context) (any, error) {
				return c.api.GetCDPEvents(ctx, c.eventsHours, c.cdpEventsLimit)
			}},
			{snapshot.Monitoring, func(ctx context.Context) (any, error) {
				return c.api.GetMonitoring(ctx, c.eventsHours, c.monitoringLimit)
			}},
		}
		if reason != ReasonScheduled {
			list = append(list, config)
		}
		return list
	case views.IPBans:
		return []resource{
			{snapshot.Bans, func(ctx context.Context) (any, error) { return c.api.GetBans(ctx) }},
		}
	default:
		return []resource{config}
	}
}

// fetchAll runs every fetch concurrently and returns the payloads only when
// all of them succeed.
func fetchAll(ctx context.Context, list []resource) (map[snapshot.Kind]any, error) {
	var mu sync.Mutex
	out := make(map[snapshot.Kind]any, len(list))

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range list {
		g.Go(func() error {
			payload, err := r.fetch(gctx)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", r.kind, err)
			}
			mu.Lock()
			out[r.kind] = payload
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// configViews judge emptiness from the config snapshot alone.
var configViews = []views.View{views.Status, views.Config, views.Tuning}

// isEmpty judges the freshly stored snapshots of view.
func isEmpty(view views.View, cache *snapshot.Cache) bool {
	switch view {
	case views.Monitoring:
		events, _ := snapshot.Typed[adminapi.Events](cache, snapshot.Events)
		bans, _ := snapshot.Typed[adminapi.Bans](cache, snapshot.Bans)
		maze, _ := snapshot.Typed[adminapi.Maze](cache, snapshot.Maze)
		return len(events.RecentEvents) == 0 && len(bans.Bans) == 0 && maze.TotalHits == 0
	case views.IPBans:
		bans, _ := snapshot.Typed[adminapi.Bans](cache, snapshot.Bans)
		return len(bans.Bans) == 0
	default:
		cfg, _ := snapshot.Typed[adminapi.Config](cache, snapshot.Config)
		return len(cfg) == 0
	}
}
