// Package analysis turns new command history into an updated skill profile.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chris/mergen/internal/ai"
	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/pkg/models"
)

// ErrAnalysisInProgress is returned by Refresh while another refresh on the
// same coordinator is still running
var ErrAnalysisInProgress = errors.New("analysis already in progress")

// Store is the part of the history store the coordinator needs
type Store interface {
	LatestProfile() (*models.ProfileReport, error)
	CommandsAfter(id int64) ([]models.CommandRecord, error)
	SaveProfile(text string, lastID int64) (int64, error)
	InsertCommand(rec *models.CommandRecord) (db.InsertResult, error)
}

// Summarizer produces answers and profile reports from masked text
type Summarizer interface {
	Ask(ctx context.Context, maskedQuestion string) (string, error)
	Profile(ctx context.Context, previous string, commands []string) (string, error)
}

// Outcome of a refresh
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeNoNewData
	OutcomeDisabled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeNoNewData:
		return "no new data"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// State of a coordinator
type State int

const (
	StateIdle State = iota
	StateAnalyzing
)

func (s State) String() string {
	if s == StateAnalyzing {
		return "analyzing"
	}
	return "idle"
}

// Result describes one refresh
type Result struct {
	Outcome Outcome
	// Report is the new report text for OutcomeUpdated, otherwise the current one
	Report string
	// Watermark is the last processed command id after the refresh
	Watermark int64
	// Pending is how many commands were newer than the previous watermark
	Pending int
	// Summarized is how many of them were sent to the summarizer
	Summarized int
	Err        error
}

// Coordinator runs incremental profile refreshes against one store handle
type Coordinator struct {
	store      Store
	summarizer Summarizer
	masker     db.Masker
	log        *slog.Logger

	mu    sync.Mutex
	cfg   *config.Config
	state State
}

// New creates a coordinator. A nil logger uses slog.Default().
func New(store Store, summarizer Summarizer, masker db.Masker, cfg *config.Config, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:      store,
		summarizer: summarizer,
		masker:     masker,
		log:        log,
		cfg:        cfg,
	}
}

// SetConfig swaps in a reloaded configuration
func (c *Coordinator) SetConfig(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

func (c *Coordinator) config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// State reports whether a refresh is running
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAnalyzing {
		return false
	}
	c.state = StateAnalyzing
	return true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
}

// Refresh summarizes commands recorded since the last report. The watermark
// only moves when a new report is saved; a failed refresh can be retried and
// sees the same window.
func (c *Coordinator) Refresh(ctx context.Context) (Result, error) {
	cfg := c.config()
	if !cfg.AIEnabled {
		return Result{Outcome: OutcomeDisabled}, nil
	}

	if !c.begin() {
		return Result{}, ErrAnalysisInProgress
	}
	defer c.end()

	res, err := c.refresh(ctx, cfg)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		c.log.Warn("profile refresh failed", "error", err, "watermark", res.Watermark)
		return res, err
	}

	c.log.Info("profile refresh finished", "outcome", res.Outcome.String(), "watermark", res.Watermark, "pending", res.Pending)
	return res, nil
}

func (c *Coordinator) refresh(ctx context.Context, cfg *config.Config) (Result, error) {
	var res Result

	latest, err := c.store.LatestProfile()
	if err != nil {
		return res, fmt.Errorf("failed to read latest profile: %w", err)
	}
	if latest != nil {
		res.Report = latest.ReportText
		res.Watermark = latest.LastProcessedID
	}

	pending, err := c.store.CommandsAfter(res.Watermark)
	if err != nil {
		return res, fmt.Errorf("failed to read new commands: %w", err)
	}
	res.Pending = len(pending)
	if len(pending) == 0 {
		res.Outcome = OutcomeNoNewData
		return res, nil
	}

	limit := cfg.MaxProfileCommands
	if limit <= 0 {
		limit = config.DefaultMaxProfileCommands
	}
	window := pending
	if len(window) > limit {
		window = window[:limit]
	}

	commands := make([]string, 0, len(window))
	for _, rec := range window {
		commands = append(commands, rec.MaskedCommand)
	}
	res.Summarized = len(commands)

	callCtx, cancel := context.WithTimeout(ctx, timeout(cfg))
	defer cancel()

	report, err := c.summarizer.Profile(callCtx, res.Report, commands)
	if err != nil {
		if errors.Is(err, ai.ErrDisabled) {
			res.Outcome = OutcomeDisabled
			return res, nil
		}
		return res, fmt.Errorf("failed to summarize commands: %w", err)
	}

	// Everything seen advances the watermark, including commands past the cap
	lastID := pending[len(pending)-1].ID
	if _, err := c.store.SaveProfile(report, lastID); err != nil {
		return res, fmt.Errorf("failed to save profile: %w", err)
	}

	res.Outcome = OutcomeUpdated
	res.Report = report
	res.Watermark = lastID
	return res, nil
}

// RunAsync runs Refresh on its own goroutine. The channel receives exactly
// one Result and is then closed.
func (c *Coordinator) RunAsync(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		res, err := c.Refresh(ctx)
		if err != nil && res.Err == nil {
			res = Result{Outcome: OutcomeFailed, Err: err}
		}
		out <- res
	}()
	return out
}

// AskResult is a parsed answer and the row it was stored in
type AskResult struct {
	ai.Answer
	MaskedQuestion string
	// ID is zero when the answer had no command
	ID int64
}

// Ask masks question, asks the summarizer and records the answered command
func (c *Coordinator) Ask(ctx context.Context, question string) (*AskResult, error) {
	cfg := c.config()
	if !cfg.AIEnabled {
		return nil, ai.ErrDisabled
	}

	masked := c.masker.Mask(strings.TrimSpace(question))

	callCtx, cancel := context.WithTimeout(ctx, timeout(cfg))
	defer cancel()

	text, err := c.summarizer.Ask(callCtx, masked)
	if err != nil {
		return nil, err
	}

	res := &AskResult{Answer: ai.ParseAnswer(text), MaskedQuestion: masked}
	if res.Command == ai.NotFound {
		return res, nil
	}

	ins, err := c.store.InsertCommand(&models.CommandRecord{
		RawCommand:    res.Command,
		MaskedCommand: c.masker.Mask(res.Command),
		QuerySummary:  masked,
		Explanation:   res.Explanation,
		Category:      res.Category,
	})
	if err != nil {
		return res, fmt.Errorf("failed to store answer: %w", err)
	}
	res.ID = ins.ID

	return res, nil
}

func timeout(cfg *config.Config) time.Duration {
	if cfg.Timeout <= 0 {
		return config.DefaultTimeout
	}
	return cfg.Timeout
}
