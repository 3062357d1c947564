// Package selection coordinates gift choices: when a campaign offers several
// rewards, the engine stops mutating that campaign and waits for the shopper
// to confirm or cancel a choice.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/observability"
)

// MutationSource labels mutations issued by a confirmed selection.
const MutationSource = "selection"

var (
	// ErrSelectionLimit is matched (errors.Is) by a *LimitError.
	ErrSelectionLimit = errors.New("selection limit exceeded")

	// ErrNoPrompt is returned when no prompt is open for the campaign.
	ErrNoPrompt = errors.New("no open gift selection for campaign")

	// ErrUnknownGift is returned when a selected variant is not offered by the prompt.
	ErrUnknownGift = errors.New("gift is not offered by this campaign")

	// ErrEmptySelection is returned when confirm carries no variant.
	ErrEmptySelection = errors.New("select at least one gift")
)

// LimitError is the only error shown to shoppers verbatim.
type LimitError struct {
	Max int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("You can select only %d gifts.", e.Max)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrSelectionLimit
}

// Phase is the selection state of the coordinator.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePrompting  Phase = "prompting"
	PhaseCommitting Phase = "committing"
)

// Prompt is the "needs choice" notification.
type Prompt struct {
	CampaignID   string             `json:"campaignId"`
	CampaignName string             `json:"campaignName,omitempty"`
	Family       string             `json:"family"`
	Gifts        []campaign.Product `json:"eligibleGifts"`
	MaxQty       int                `json:"maxQty"`

	// Properties tag the lines added on confirm.
	Properties cart.Properties `json:"-"`
}

func (p Prompt) offers(variantID int64) bool {
	return slices.ContainsFunc(p.Gifts, func(g campaign.Product) bool { return g.VariantID == variantID })
}

// Notice is delivered to subscribers when a prompt opens or closes.
type Notice struct {
	Prompt Prompt `json:"prompt"`
	Phase  Phase  `json:"phase"`
	// Outcome is set when the prompt closes: confirmed, cancelled, withdrawn or failed.
	Outcome string `json:"outcome,omitempty"`
}

// Applier issues a batch of cart mutations. *cart.Mutator implements it.
type Applier interface {
	ApplyBatch(ctx context.Context, source string, muts []cart.Mutation) error
}

// Coordinator holds the single process-wide prompt.
type Coordinator struct {
	logger  *slog.Logger
	applier Applier

	mu     sync.Mutex
	phase  Phase
	prompt Prompt

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(Notice)
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(logger *slog.Logger, applier Applier) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if applier == nil {
		panic("selection: applier cannot be nil")
	}
	return &Coordinator{
		logger:  logger,
		applier: applier,
		phase:   PhaseIdle,
		subs:    make(map[int]func(Notice)),
	}
}

// Request opens p unless a prompt is already open. A dropped request is not
// queued; the next pass asks again.
func (c *Coordinator) Request(p Prompt) bool {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		busy := c.prompt.CampaignID
		c.mu.Unlock()

		if busy != p.CampaignID {
			observability.SelectionPromptsTotal.WithLabelValues("dropped").Inc()
			c.logger.Debug("selection prompt dropped, another prompt is open",
				slog.String("campaign_id", p.CampaignID),
				slog.String("open_campaign_id", busy),
			)
		}
		return false
	}
	c.phase = PhasePrompting
	c.prompt = p
	c.mu.Unlock()

	observability.SelectionPromptsTotal.WithLabelValues("opened").Inc()
	c.logger.Info("gift selection requested",
		slog.String("campaign_id", p.CampaignID),
		slog.Int("gifts", len(p.Gifts)),
		slog.Int("max_qty", p.MaxQty),
	)
	c.notify(Notice{Prompt: p, Phase: PhasePrompting})
	return true
}

// Paused reports whether campaignID is prompting or committing.
func (c *Coordinator) Paused(campaignID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != PhaseIdle && c.prompt.CampaignID == campaignID
}

// Pending returns the open prompt, if any.
func (c *Coordinator) Pending() (Prompt, Phase, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseIdle {
		return Prompt{}, PhaseIdle, false
	}
	return c.prompt, c.phase, true
}

// Confirm validates the selection and adds one unit per selected variant.
// A rejected selection leaves the prompt open and issues no mutation.
func (c *Coordinator) Confirm(ctx context.Context, campaignID string, variantIDs []int64) error {
	c.mu.Lock()
	if c.phase != PhasePrompting || c.prompt.CampaignID != campaignID {
		c.mu.Unlock()
		return fmt.Errorf("%w %q", ErrNoPrompt, campaignID)
	}
	p := c.prompt

	selected := dedupe(variantIDs)
	if err := validate(p, selected); err != nil {
		c.mu.Unlock()
		observability.SelectionOutcomesTotal.WithLabelValues("rejected").Inc()
		return err
	}
	c.phase = PhaseCommitting
	c.mu.Unlock()

	c.notify(Notice{Prompt: p, Phase: PhaseCommitting})

	muts := make([]cart.Mutation, 0, len(selected))
	for _, vid := range selected {
		muts = append(muts, cart.Add(vid, 1, p.Properties))
	}
	err := c.applier.ApplyBatch(ctx, MutationSource, muts)

	outcome := "confirmed"
	if err != nil {
		outcome = "failed"
		c.logger.Warn("gift selection commit failed",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
	}
	c.close(p, outcome)

	if err != nil {
		return fmt.Errorf("failed to add selected gifts: %w", err)
	}
	return nil
}

// Cancel closes the prompt without mutating. The campaign prompts again on a later pass.
func (c *Coordinator) Cancel(campaignID string) error {
	c.mu.Lock()
	if c.phase != PhasePrompting || c.prompt.CampaignID != campaignID {
		c.mu.Unlock()
		return fmt.Errorf("%w %q", ErrNoPrompt, campaignID)
	}
	p := c.prompt
	c.mu.Unlock()

	c.close(p, "cancelled")
	return nil
}

// Withdraw closes the prompt of a campaign that is no longer eligible.
// A commit in flight is left to finish.
func (c *Coordinator) Withdraw(campaignID string) bool {
	c.mu.Lock()
	if c.phase != PhasePrompting || c.prompt.CampaignID != campaignID {
		c.mu.Unlock()
		return false
	}
	p := c.prompt
	c.mu.Unlock()

	c.close(p, "withdrawn")
	return true
}

// Subscribe registers fn for prompt notices. The returned func unsubscribes.
// fn runs on the caller's goroutine and must not block.
func (c *Coordinator) Subscribe(fn func(Notice)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Coordinator) close(p Prompt, outcome string) {
	c.mu.Lock()
	if c.prompt.CampaignID == p.CampaignID {
		c.phase = PhaseIdle
		c.prompt = Prompt{}
	}
	c.mu.Unlock()

	observability.SelectionOutcomesTotal.WithLabelValues(outcome).Inc()
	c.logger.Info("gift selection closed",
		slog.String("campaign_id", p.CampaignID),
		slog.String("outcome", outcome),
	)
	c.notify(Notice{Prompt: p, Phase: PhaseIdle, Outcome: outcome})
}

func (c *Coordinator) notify(n Notice) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, fn := range c.subs {
		fn(n)
	}
}

func validate(p Prompt, selected []int64) error {
	if len(selected) == 0 {
		return ErrEmptySelection
	}
	if len(selected) > p.MaxQty {
		return &LimitError{Max: p.MaxQty}
	}
	for _, vid := range selected {
		if !p.offers(vid) {
			return fmt.Errorf("%w: variant %d", ErrUnknownGift, vid)
		}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
