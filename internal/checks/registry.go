package checks

import (
	"sort"
	"time"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/probe"
)

// Options carries per-check tunables handed to constructors.
type Options struct {
	HealthTimeout      time.Duration // default 5s
	InteractiveTimeout time.Duration // default 15s
	GoldenFactTrials   int           // default 5
	AllowedPorts       []int         // firewall check exposure allow-list
}

func (o Options) withDefaults() Options {
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = 5 * time.Second
	}
	if o.InteractiveTimeout <= 0 {
		o.InteractiveTimeout = 15 * time.Second
	}
	if o.GoldenFactTrials <= 0 {
		o.GoldenFactTrials = 5
	}
	return o
}

// Definition is one entry in the static registration table. Constructors are
// resolved at startup; there is no runtime reflection.
type Definition struct {
	ID          string
	Description string
	Enabled     bool // part of the built-in default set
	New         func(client *probe.Client, opts Options) Check
}

// registry is the built-in check table, keyed by stable check ID.
var registry = []Definition{
	{
		ID:          "S1-probes",
		Description: "Liveness and readiness probes with dependency status verification",
		Enabled:     true,
		New: func(c *probe.Client, o Options) Check {
			return NewHealthCheck(c, o.HealthTimeout)
		},
	},
	{
		ID:          "S2-golden-fact-recall",
		Description: "Stores structured facts and verifies natural-language retrieval",
		Enabled:     true,
		New: func(c *probe.Client, o Options) Check {
			return NewGoldenFactCheck(c, o.GoldenFactTrials, o.InteractiveTimeout)
		},
	},
	{
		ID:          "S3-paraphrase-robustness",
		Description: "Retrieval robustness under query paraphrasing",
		Enabled:     true,
		New:         newPlaceholder("S3-paraphrase-robustness", "Retrieval robustness under query paraphrasing"),
	},
	{
		ID:          "S4-metrics-wiring",
		Description: "Metrics pipeline wiring verification",
		Enabled:     true,
		New:         newPlaceholder("S4-metrics-wiring", "Metrics pipeline wiring verification"),
	},
	{
		ID:          "S5-security-negatives",
		Description: "Negative authentication and authorization probes",
		Enabled:     true,
		New:         newPlaceholder("S5-security-negatives", "Negative authentication and authorization probes"),
	},
	{
		ID:          "S6-backup-restore",
		Description: "Backup and restore integrity verification",
		Enabled:     true,
		New:         newPlaceholder("S6-backup-restore", "Backup and restore integrity verification"),
	},
	{
		ID:          "S7-config-parity",
		Description: "Deployed configuration parity verification",
		Enabled:     true,
		New:         newPlaceholder("S7-config-parity", "Deployed configuration parity verification"),
	},
	{
		ID:          "S8-capacity-smoke",
		Description: "Capacity headroom smoke test",
		Enabled:     true,
		New:         newPlaceholder("S8-capacity-smoke", "Capacity headroom smoke test"),
	},
	{
		ID:          "S9-graph-intent",
		Description: "Graph intent validation",
		Enabled:     true,
		New:         newPlaceholder("S9-graph-intent", "Graph intent validation"),
	},
	{
		ID:          "S10-content-pipeline",
		Description: "Content pipeline monitoring",
		Enabled:     true,
		New:         newPlaceholder("S10-content-pipeline", "Content pipeline monitoring"),
	},
	{
		ID:          "firewall-status",
		Description: "Local firewall and port exposure introspection",
		Enabled:     true,
		New: func(c *probe.Client, o Options) Check {
			return NewFirewallCheck(o.AllowedPorts)
		},
	},
}

// Definitions returns a copy of the registry, sorted by ID.
func Definitions() []Definition {
	out := make([]Definition, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active instantiates the checks that are both registered and matched by the
// enabled set. Patterns use wildcard matching (e.g. "S1-*"); an empty set
// selects the built-in default set. Unknown patterns are logged and skipped.
func Active(client *probe.Client, enabled []string, opts Options) []Check {
	opts = opts.withDefaults()

	var active []Check
	matchedPatterns := make(map[string]bool)
	for _, def := range registry {
		if !selected(def, enabled, matchedPatterns) {
			continue
		}
		active = append(active, def.New(client, opts))
	}

	for _, pattern := range enabled {
		if !matchedPatterns[pattern] {
			log.Warn().Str("pattern", pattern).Msg("Enabled check pattern matched no registered check")
		}
	}

	log.Info().Int("count", len(active)).Msg("Instantiated checks from registry")
	return active
}

func selected(def Definition, enabled []string, matched map[string]bool) bool {
	if len(enabled) == 0 {
		return def.Enabled
	}
	ok := false
	for _, pattern := range enabled {
		if wildcard.Match(pattern, def.ID) {
			matched[pattern] = true
			ok = true
		}
	}
	return ok
}
