package giftstate

import (
	"log/slog"
	"sync"
)

// Publisher fans reports out to subscribers and keeps the latest one.
type Publisher struct {
	logger *slog.Logger

	mu     sync.RWMutex
	latest *Report
	nextID int
	subs   map[int]func(Report)
}

// NewPublisher creates an empty publisher.
func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger, subs: make(map[int]func(Report))}
}

// Publish stores r as the latest report and hands it to every subscriber.
func (p *Publisher) Publish(r Report) {
	p.mu.Lock()
	p.latest = &r
	subs := make([]func(Report), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(r)
	}

	p.logger.Debug("gift state published",
		slog.String("pass_id", r.PassID),
		slog.Int("campaigns", len(r.Campaigns)),
		slog.Int("subscribers", len(subs)),
	)
}

// Latest returns the last published report.
func (p *Publisher) Latest() (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return Report{}, false
	}
	return *p.latest, true
}

// Subscribe registers fn. The returned func unsubscribes.
func (p *Publisher) Subscribe(fn func(Report)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}
