package usecases

import (
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/nearbus/internal/pkg/config"
	"github.com/samirrijal/nearbus/internal/pkg/metrics"
	"github.com/samirrijal/nearbus/internal/pkg/ratelimit"
)

// UsageGovernor gates external provider calls behind a daily budget and the
// proximity-check operation behind per-client and per-contact hourly windows.
// It is advisory: callers consult it before doing expensive work and take the
// degraded path on denial. Counters are best-effort and reset on restart.
type UsageGovernor struct {
	provider   *ratelimit.DailyBudget
	perClient  *ratelimit.Window
	perContact *ratelimit.Window
	login      *ratelimit.Window
}

// NewUsageGovernor creates a governor from the configured caps.
func NewUsageGovernor(clk clock.Clock, cfg config.LimitsConfig) *UsageGovernor {
	return &UsageGovernor{
		provider:   ratelimit.NewDailyBudget(clk, cfg.ProviderDailyCap),
		perClient:  ratelimit.NewWindow(clk, time.Hour, cfg.ProximityHourlyCap),
		perContact: ratelimit.NewWindow(clk, time.Hour, cfg.ContactHourlyCap),
		login:      ratelimit.NewWindow(clk, time.Hour, cfg.LoginHourlyCap),
	}
}

// AllowProviderCall consumes one unit of the UTC-daily provider budget.
// Callers fall back to free/degenerate paths when it returns false.
func (g *UsageGovernor) AllowProviderCall() bool {
	ok := g.provider.TryConsume()
	if !ok {
		metrics.ProviderBudgetDenied.Inc()
	}
	return ok
}

// ProviderBudgetRemaining reports how many provider calls are left today.
func (g *UsageGovernor) ProviderBudgetRemaining() int {
	return g.provider.Remaining()
}

// AllowProximityCheck gates one proximity check. It denies when either the
// client or contact window is at its cap, and counts against both windows
// only when the check is admitted. Call it after input validation so that
// malformed requests never consume quota. An empty contact skips the contact
// window.
func (g *UsageGovernor) AllowProximityCheck(clientID, contact string) bool {
	if !g.perClient.Peek(clientID) {
		metrics.GovernorRejections.WithLabelValues("client").Inc()
		return false
	}
	if contact != "" && !g.perContact.Peek(contact) {
		metrics.GovernorRejections.WithLabelValues("contact").Inc()
		return false
	}
	g.perClient.Allow(clientID)
	if contact != "" {
		g.perContact.Allow(contact)
	}
	return true
}

// AllowLoginAttempt gates login attempts per client with the same window
// primitive as the proximity limits, just a smaller cap.
func (g *UsageGovernor) AllowLoginAttempt(clientID string) bool {
	ok := g.login.Allow(clientID)
	if !ok {
		metrics.GovernorRejections.WithLabelValues("login").Inc()
	}
	return ok
}
