package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"betswarm/internal/config"
	"betswarm/internal/decision"
	"betswarm/internal/ledger"
	"betswarm/internal/market"
	"betswarm/internal/models"
	"betswarm/internal/repository"
)

type stubMarket struct {
	opps    []market.Opportunity
	listErr error

	sent []string
}

func (s *stubMarket) ListActiveOpportunities(ctx context.Context) ([]market.Opportunity, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]market.Opportunity(nil), s.opps...), nil
}

func (s *stubMarket) GetOpportunity(ctx context.Context, id int64) (*market.Opportunity, error) {
	for _, o := range s.opps {
		if o.ID == id {
			copied := o
			return &copied, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *stubMarket) GetChat(ctx context.Context, id int64, limit int) ([]market.ChatMessage, error) {
	return nil, nil
}

func (s *stubMarket) GetOddsVector(ctx context.Context, id int64) ([]float64, error) {
	return []float64{2.0, 2.0}, nil
}

func (s *stubMarket) SendMessage(ctx context.Context, opportunityID int64, sender, text string, replyTo *int64) error {
	s.sent = append(s.sent, text)
	return nil
}

type stubWallet struct {
	balance  decimal.Decimal
	placeErr error
	placed   int
	balErr   error
}

func (s *stubWallet) GetAvailableBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	if s.balErr != nil {
		return decimal.Zero, s.balErr
	}
	return s.balance, nil
}

func (s *stubWallet) PlaceWager(ctx context.Context, account string, opportunityID int64, outcome int, amount decimal.Decimal) error {
	if s.placeErr != nil {
		return s.placeErr
	}
	s.placed++
	return nil
}

type stubDecider struct {
	results map[string]decision.Result
	err     error
	calls   int

	gotAgents []decision.AgentContext
}

func (s *stubDecider) Decide(ctx context.Context, agents []decision.AgentContext, opps []market.Opportunity, res map[int64]models.Research) (map[string]decision.Result, error) {
	s.calls++
	s.gotAgents = agents
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// memRepo is the minimal in-memory repository the ledgers need here.
type memRepo struct {
	repository.Repository

	wagers []models.Wager
	nextID uint64
}

func (m *memRepo) InsertWager(ctx context.Context, item *models.Wager) error {
	m.nextID++
	item.ID = m.nextID
	m.wagers = append(m.wagers, *item)
	return nil
}

func (m *memRepo) ListWagersByAgent(ctx context.Context, agent string) ([]models.Wager, error) {
	out := []models.Wager{}
	for _, w := range m.wagers {
		if w.AgentName == agent {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memRepo) ListPendingWagers(ctx context.Context, agent string) ([]models.Wager, error) {
	out := []models.Wager{}
	for _, w := range m.wagers {
		if w.AgentName == agent && w.Status == models.WagerPending {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memRepo) OldestPendingWager(ctx context.Context, agent string, opportunityID int64) (*models.Wager, error) {
	var oldest *models.Wager
	for i := range m.wagers {
		w := &m.wagers[i]
		if w.AgentName != agent || w.OpportunityID != opportunityID || w.Status != models.WagerPending {
			continue
		}
		if oldest == nil || w.CreatedAt.Before(oldest.CreatedAt) {
			oldest = w
		}
	}
	if oldest == nil {
		return nil, nil
	}
	copied := *oldest
	return &copied, nil
}

func (m *memRepo) ResolveWager(ctx context.Context, id uint64, status string, pnl decimal.Decimal, resolvedAt time.Time) (bool, error) {
	for i := range m.wagers {
		if m.wagers[i].ID != id {
			continue
		}
		if m.wagers[i].Status != models.WagerPending {
			return false, nil
		}
		m.wagers[i].Status = status
		m.wagers[i].PnL = pnl
		return true, nil
	}
	return false, nil
}

func intPtr(v int) *int { return &v }

func newTestOrchestrator(mkt *stubMarket, wal *stubWallet, dec *stubDecider, repo *memRepo) *Orchestrator {
	profiles := []config.AgentProfile{
		{Name: "ada", Account: "acct-ada", MaxWager: decimal.NewFromInt(10)},
	}
	ledgers := map[string]*ledger.Ledger{
		"ada": {Agent: "ada", Repo: repo},
	}
	return &Orchestrator{
		Agents:  profiles,
		Market:  mkt,
		Wallet:  wal,
		Decider: dec,
		Ledgers: ledgers,
		Config: config.EngineConfig{
			TopOpportunities: 10,
		},
		Sleep:  func(ctx context.Context, d time.Duration) {},
		Jitter: func(min, max time.Duration) time.Duration { return 0 },
	}
}

func TestRunCycleEmptySnapshotSkipsDecision(t *testing.T) {
	mkt := &stubMarket{}
	dec := &stubDecider{}
	orch := newTestOrchestrator(mkt, &stubWallet{balance: decimal.NewFromInt(100)}, dec, &memRepo{})

	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if dec.calls != 0 {
		t.Fatalf("decider calls = %d, want 0 with no opportunities", dec.calls)
	}
}

func TestRunCycleResolvesBeforeDeciding(t *testing.T) {
	mkt := &stubMarket{opps: []market.Opportunity{
		{
			ID:             1,
			Status:         market.StatusResolved,
			WinningOutcome: intPtr(0),
			OutcomePools:   []decimal.Decimal{decimal.NewFromInt(40), decimal.NewFromInt(60)},
			TotalPool:      decimal.NewFromInt(100),
		},
		{ID: 2, Status: market.StatusActive},
	}}
	repo := &memRepo{
		wagers: []models.Wager{
			{ID: 1, AgentName: "ada", OpportunityID: 1, Outcome: 0, Amount: decimal.NewFromInt(10), Status: models.WagerPending},
		},
		nextID: 1,
	}
	dec := &stubDecider{results: map[string]decision.Result{}}
	orch := newTestOrchestrator(mkt, &stubWallet{balance: decimal.NewFromInt(100)}, dec, repo)

	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if repo.wagers[0].Status != models.WagerWon {
		t.Fatalf("wager status = %q, want won before decision round", repo.wagers[0].Status)
	}
	if !repo.wagers[0].PnL.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("pnl = %s, want 15", repo.wagers[0].PnL)
	}
	if dec.calls != 1 {
		t.Fatalf("decider calls = %d, want 1", dec.calls)
	}
	// The decision round must not see the just-resolved wager as pending.
	if len(dec.gotAgents) != 1 || len(dec.gotAgents[0].Pending) != 0 {
		t.Fatalf("agent pending = %+v, want empty", dec.gotAgents)
	}
}

func TestRunCycleDispatchesValidatedBet(t *testing.T) {
	mkt := &stubMarket{opps: []market.Opportunity{{ID: 1, Status: market.StatusActive}}}
	wal := &stubWallet{balance: decimal.NewFromInt(100)}
	repo := &memRepo{}
	dec := &stubDecider{results: map[string]decision.Result{
		"ada": {
			Reasoning: "worth a shot",
			Actions: []decision.Action{
				{Kind: decision.KindBet, OpportunityID: 1, Outcome: 0, Amount: decimal.NewFromInt(2)},
			},
		},
	}}
	orch := newTestOrchestrator(mkt, wal, dec, repo)

	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if wal.placed != 1 {
		t.Fatalf("wallet placements = %d, want 1", wal.placed)
	}
	if len(repo.wagers) != 1 {
		t.Fatalf("recorded wagers = %d, want 1", len(repo.wagers))
	}
	if repo.wagers[0].Reasoning != "worth a shot" {
		t.Fatalf("reasoning = %q, want round reasoning as fallback", repo.wagers[0].Reasoning)
	}
}

func TestRunCycleRejectedPlacementNotRecorded(t *testing.T) {
	mkt := &stubMarket{opps: []market.Opportunity{{ID: 1, Status: market.StatusActive}}}
	wal := &stubWallet{balance: decimal.NewFromInt(100), placeErr: errors.New("insufficient funds")}
	repo := &memRepo{}
	dec := &stubDecider{results: map[string]decision.Result{
		"ada": {Actions: []decision.Action{
			{Kind: decision.KindBet, OpportunityID: 1, Outcome: 0, Amount: decimal.NewFromInt(2)},
		}},
	}}
	orch := newTestOrchestrator(mkt, wal, dec, repo)

	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(repo.wagers) != 0 {
		t.Fatalf("recorded wagers = %d, want 0 after rejected placement", len(repo.wagers))
	}
}

func TestRunCycleSnapshotFailureAborts(t *testing.T) {
	mkt := &stubMarket{listErr: errors.New("market down")}
	dec := &stubDecider{}
	orch := newTestOrchestrator(mkt, &stubWallet{}, dec, &memRepo{})

	if err := orch.RunCycle(context.Background()); err == nil {
		t.Fatal("want error when snapshot fails")
	}
	if dec.calls != 0 {
		t.Fatalf("decider calls = %d, want 0", dec.calls)
	}
}

func TestRunCycleDecisionFailureDoesNotAbort(t *testing.T) {
	mkt := &stubMarket{opps: []market.Opportunity{{ID: 1, Status: market.StatusActive}}}
	dec := &stubDecider{err: errors.New("oracle timeout")}
	orch := newTestOrchestrator(mkt, &stubWallet{balance: decimal.NewFromInt(100)}, dec, &memRepo{})

	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v, want nil despite oracle failure", err)
	}
}

func TestRunCycleExcludesAgentWithoutBalance(t *testing.T) {
	mkt := &stubMarket{opps: []market.Opportunity{{ID: 1, Status: market.StatusActive}}}
	wal := &stubWallet{balErr: errors.New("wallet down")}
	dec := &stubDecider{results: map[string]decision.Result{}}
	orch := newTestOrchestrator(mkt, wal, dec, &memRepo{})

	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if dec.calls != 0 {
		t.Fatalf("decider calls = %d, want 0 with no eligible agents", dec.calls)
	}
}

func TestRunStopsAtCycleBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mkt := &stubMarket{}
	dec := &stubDecider{}
	orch := newTestOrchestrator(mkt, &stubWallet{}, dec, &memRepo{})
	cycles := 0
	orch.Sleep = func(ctx context.Context, d time.Duration) {
		cycles++
		if cycles >= 2 {
			cancel()
		}
	}

	err := orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if cycles != 2 {
		t.Fatalf("cycles = %d, want 2 before stop took effect", cycles)
	}
}

func TestSnapshotCapsTopOpportunities(t *testing.T) {
	mkt := &stubMarket{opps: []market.Opportunity{
		{ID: 1, Status: market.StatusActive},
		{ID: 2, Status: market.StatusActive},
		{ID: 3, Status: market.StatusActive},
	}}
	orch := newTestOrchestrator(mkt, &stubWallet{}, &stubDecider{}, &memRepo{})
	orch.Config.TopOpportunities = 2

	opps, err := orch.snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(opps) != 2 {
		t.Fatalf("opps = %d, want 2", len(opps))
	}
	if len(opps[0].Probabilities) != 2 {
		t.Fatalf("probabilities = %v, want derived from odds", opps[0].Probabilities)
	}
}

func TestAgentCycleBoundsGateParticipation(t *testing.T) {
	mkt := &stubMarket{opps: []market.Opportunity{{ID: 1, Status: market.StatusActive}}}
	dec := &stubDecider{results: map[string]decision.Result{}}
	repo := &memRepo{}
	orch := newTestOrchestrator(mkt, &stubWallet{balance: decimal.NewFromInt(100)}, dec, repo)
	orch.Agents[0].CycleMin = 10 * time.Minute
	orch.Agents[0].CycleMax = 10 * time.Minute
	orch.Jitter = func(min, max time.Duration) time.Duration { return min }
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orch.Now = func() time.Time { return now }

	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if dec.calls != 1 {
		t.Fatalf("decider calls = %d, want first cycle to include the agent", dec.calls)
	}

	// Second cycle lands inside the agent's interval: no eligible agents,
	// so no decision round runs.
	now = now.Add(5 * time.Minute)
	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if dec.calls != 1 {
		t.Fatalf("decider calls = %d, want agent gated out", dec.calls)
	}

	now = now.Add(6 * time.Minute)
	if err := orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if dec.calls != 2 {
		t.Fatalf("decider calls = %d, want agent eligible again", dec.calls)
	}
}
