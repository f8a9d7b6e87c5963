package fetch

import (
	"context"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

type pageGetter func(ctx context.Context, rawURL string) (*Page, error)

// RobotsGate fetches, caches and checks robots.txt per host.
// Hosts whose robots.txt cannot be fetched or parsed are treated as allowing everything.
type RobotsGate struct {
	get       pageGetter
	userAgent string
	cache     map[string]*robotstxt.RobotsData // host -> parsed data (nil = allow all)
	cacheMu   sync.Mutex
	group     singleflight.Group
	log       *logrus.Entry
}

// NewRobotsGate creates a RobotsGate that fetches through get
func NewRobotsGate(get pageGetter, userAgent string, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		get:       get,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// Allowed reports whether rawURL may be fetched
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return true
	}
	data := g.robotsFor(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), g.userAgent)
}

func (g *RobotsGate) robotsFor(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host

	g.cacheMu.Lock()
	data, found := g.cache[host]
	g.cacheMu.Unlock()
	if found {
		return data
	}

	v, _, _ := g.group.Do(host, func() (any, error) {
		scheme := target.Scheme
		if scheme != "http" && scheme != "https" {
			scheme = "https"
		}
		robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()
		robotsLog := g.log.WithField("robots_url", robotsURL)

		var parsed *robotstxt.RobotsData
		page, err := g.get(ctx, robotsURL)
		if err != nil {
			robotsLog.Warnf("Fetching robots.txt failed, allowing all: %v", err)
		} else if parsed, err = robotstxt.FromBytes(page.Body); err != nil {
			robotsLog.Warnf("Parsing robots.txt failed, allowing all: %v", err)
			parsed = nil
		} else {
			robotsLog.Info("Loaded robots.txt")
		}

		g.cacheMu.Lock()
		g.cache[host] = parsed
		g.cacheMu.Unlock()
		return parsed, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data
}
