package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/matchbox/internal/chain"
	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/notify"
	"github.com/alanyoungcy/matchbox/internal/sequence"
)

const (
	// DeployChannelPrefix is the pub/sub channel prefix for phase events;
	// the full channel is DeployChannelPrefix + deployment id.
	DeployChannelPrefix = "ch:deploy:"
	// DeployStreamPrefix names the durable per-deployment event stream.
	DeployStreamPrefix = "stream:deploy:"

	defaultLockTTL   = 5 * time.Minute
	defaultTxTimeout = 3 * time.Minute
)

// DeployChain performs the two on-chain steps of a deployment.
type DeployChain interface {
	From() common.Address
	CreateVault(ctx context.Context, salt [32]byte) (common.Address, common.Hash, error)
	InitializeSequence(ctx context.Context, vault common.Address, rules []domain.Rule) (common.Hash, error)
}

// DeployOptions carries the optional collaborators of a DeployService. Any
// nil field disables that concern.
type DeployOptions struct {
	Locks    domain.LockManager
	Bus      domain.SignalBus
	Audit    domain.AuditStore
	Blobs    domain.BlobWriter
	Notifier *notify.Notifier

	LockTTL   time.Duration
	TxTimeout time.Duration
}

// DeployService drives a vault deployment through its phases: create the
// vault, read its address from the receipt, then register the sequence.
type DeployService struct {
	chain     DeployChain
	store     domain.DeploymentStore
	locks     domain.LockManager
	bus       domain.SignalBus
	audit     domain.AuditStore
	blobs     domain.BlobWriter
	notifier  *notify.Notifier
	lockTTL   time.Duration
	txTimeout time.Duration
	logger    *slog.Logger

	now     func() time.Time
	newSalt func() ([32]byte, error)
	wg      sync.WaitGroup
}

// NewDeployService creates a DeployService. chain and store are required.
func NewDeployService(dc DeployChain, store domain.DeploymentStore, opts DeployOptions, logger *slog.Logger) *DeployService {
	s := &DeployService{
		chain:     dc,
		store:     store,
		locks:     opts.Locks,
		bus:       opts.Bus,
		audit:     opts.Audit,
		blobs:     opts.Blobs,
		notifier:  opts.Notifier,
		lockTTL:   opts.LockTTL,
		txTimeout: opts.TxTimeout,
		logger:    logger.With(slog.String("component", "deploy_service")),
		now:       func() time.Time { return time.Now().UTC() },
		newSalt:   chain.NewSalt,
	}
	if s.lockTTL <= 0 {
		s.lockTTL = defaultLockTTL
	}
	if s.txTimeout <= 0 {
		s.txTimeout = defaultTxTimeout
	}
	return s
}

// Deploy validates legs and runs the whole deployment before returning. An
// invalid sequence returns *sequence.ValidationError and creates nothing.
// A chain or store failure after the record exists is returned as the
// error together with the deployment, which is in the error phase whenever
// that phase could be persisted.
func (s *DeployService) Deploy(ctx context.Context, owner string, legs []domain.Leg) (domain.Deployment, error) {
	d, rules, unlock, err := s.begin(ctx, owner, legs)
	if err != nil {
		return domain.Deployment{}, err
	}
	defer unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.run(runCtx, d, rules)
}

// Start is Deploy in the background: it returns as soon as the deployment
// is in the creating phase. Progress is visible through Get and the event
// bus.
func (s *DeployService) Start(ctx context.Context, owner string, legs []domain.Leg) (domain.Deployment, error) {
	d, rules, unlock, err := s.begin(ctx, owner, legs)
	if err != nil {
		return domain.Deployment{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unlock()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
		defer cancel()
		_, _ = s.run(runCtx, d, rules)
	}()
	return d, nil
}

// Wait blocks until every deployment started with Start has finished.
func (s *DeployService) Wait() {
	s.wg.Wait()
}

// Get returns a deployment by id.
func (s *DeployService) Get(ctx context.Context, id string) (domain.Deployment, error) {
	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("deploy_service: get %s: %w", id, err)
	}
	return d, nil
}

// List returns an owner's deployments, newest first.
func (s *DeployService) List(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Deployment, error) {
	list, err := s.store.ListByOwner(ctx, owner, opts)
	if err != nil {
		return nil, fmt.Errorf("deploy_service: list %s: %w", owner, err)
	}
	return list, nil
}

// Events returns the recorded phase events of a deployment after lastID
// ("" or "0" for all).
func (s *DeployService) Events(ctx context.Context, id, lastID string, count int) ([]domain.DeployEvent, error) {
	if s.bus == nil {
		return nil, nil
	}
	if lastID == "" {
		lastID = "0"
	}
	msgs, err := s.bus.StreamRead(ctx, DeployStreamPrefix+id, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("deploy_service: events %s: %w", id, err)
	}
	out := make([]domain.DeployEvent, 0, len(msgs))
	for _, m := range msgs {
		var ev domain.DeployEvent
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			s.logger.WarnContext(ctx, "deploy_service: skipping bad event",
				slog.String("stream_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Reset moves an errored deployment back to idle so the caller can try
// again, clearing what the failed attempt recorded (salt, vault and tx
// hashes). The id, owner and sequence are kept. Any other phase returns
// domain.ErrInvalidPhase.
func (s *DeployService) Reset(ctx context.Context, id string) (domain.Deployment, error) {
	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("deploy_service: reset %s: %w", id, err)
	}
	if d.Phase != domain.PhaseError {
		return domain.Deployment{}, fmt.Errorf("deploy_service: reset %s from %s: %w", id, d.Phase, domain.ErrInvalidPhase)
	}
	d.Error = ""
	d.FailedStep = ""
	d.Salt = ""
	d.Vault = ""
	d.CreateTxHash = ""
	d.InitTxHash = ""
	if err := s.transition(ctx, &d, domain.PhaseIdle, ""); err != nil {
		return domain.Deployment{}, err
	}
	return d, nil
}

// begin validates, takes the owner lock and records the deployment in the
// creating phase. The returned unlock must be called once the run ends.
func (s *DeployService) begin(ctx context.Context, owner string, legs []domain.Leg) (domain.Deployment, []domain.Rule, func(), error) {
	if owner == "" {
		owner = s.chain.From().Hex()
	}
	if !common.IsHexAddress(owner) {
		return domain.Deployment{}, nil, nil, fmt.Errorf("deploy_service: owner %q: %w", owner, domain.ErrInvalidAddress)
	}
	owner = common.HexToAddress(owner).Hex()

	legs = sequence.DraftFrom(legs).Legs()
	rules, err := sequence.EncodeSequence(legs)
	if err != nil {
		return domain.Deployment{}, nil, nil, err
	}

	unlock := func() {}
	if s.locks != nil {
		unlock, err = s.locks.Acquire(ctx, "deploy:"+strings.ToLower(owner), s.lockTTL)
		if err != nil {
			return domain.Deployment{}, nil, nil, fmt.Errorf("deploy_service: owner %s: %w", owner, err)
		}
	}

	now := s.now()
	d := domain.Deployment{
		ID:        uuid.NewString(),
		Owner:     owner,
		Legs:      legs,
		Rules:     domain.Views(rules),
		Phase:     domain.PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		unlock()
		return domain.Deployment{}, nil, nil, fmt.Errorf("deploy_service: create record: %w", err)
	}
	if err := s.transition(ctx, &d, domain.PhaseCreating, ""); err != nil {
		unlock()
		return domain.Deployment{}, nil, nil, err
	}
	return d, rules, unlock, nil
}

// run performs the chain steps. Initialization only happens once creation
// produced a vault address. A non-nil error means the deployment did not
// complete; the returned value is in the error phase unless even that could
// not be persisted.
func (s *DeployService) run(ctx context.Context, d domain.Deployment, rules []domain.Rule) (domain.Deployment, error) {
	salt, err := s.newSalt()
	if err != nil {
		return s.fail(ctx, d, domain.StepCreate, err)
	}
	d.Salt = common.Hash(salt).Hex()

	vault, createHash, err := s.chain.CreateVault(ctx, salt)
	if createHash != (common.Hash{}) {
		d.CreateTxHash = createHash.Hex()
	}
	if err != nil {
		return s.fail(ctx, d, domain.StepCreate, err)
	}
	d.Vault = vault.Hex()
	if err := s.transition(ctx, &d, domain.PhaseInitializing, d.CreateTxHash); err != nil {
		return s.fail(ctx, d, domain.StepInitialize, err)
	}

	initHash, err := s.chain.InitializeSequence(ctx, vault, rules)
	if initHash != (common.Hash{}) {
		d.InitTxHash = initHash.Hex()
	}
	if err != nil {
		return s.fail(ctx, d, domain.StepInitialize, err)
	}
	if err := s.transition(ctx, &d, domain.PhaseComplete, d.InitTxHash); err != nil {
		return s.fail(ctx, d, domain.StepInitialize, err)
	}

	s.archive(ctx, d)
	s.notify(ctx, d, d.InitTxHash)
	s.logger.InfoContext(ctx, "deploy_service: deployment complete",
		slog.String("deployment_id", d.ID),
		slog.String("vault", d.Vault),
	)
	return d, nil
}

// fail records cause against step and moves d to the error phase. The
// returned error is always non-nil, also when the error phase itself could
// not be persisted.
func (s *DeployService) fail(ctx context.Context, d domain.Deployment, step domain.DeployStep, cause error) (domain.Deployment, error) {
	failErr := fmt.Errorf("deploy_service: %s step failed: %w", step, cause)
	d.FailedStep = step
	d.Error = cause.Error()
	s.logger.ErrorContext(ctx, "deploy_service: deployment failed",
		slog.String("deployment_id", d.ID),
		slog.String("step", string(step)),
		slog.String("error", cause.Error()),
	)
	if err := s.transition(ctx, &d, domain.PhaseError, ""); err != nil {
		return d, errors.Join(failErr, err)
	}
	s.notify(ctx, d, "")
	return d, failErr
}

// transition moves d to next, persists it and publishes the event. Bus and
// audit failures are logged; a store failure is returned and leaves d as it
// was.
func (s *DeployService) transition(ctx context.Context, d *domain.Deployment, next domain.DeployPhase, txHash string) error {
	if !d.Phase.CanTransition(next) {
		return fmt.Errorf("deploy_service: %s -> %s: %w", d.Phase, next, domain.ErrInvalidPhase)
	}
	prev, prevUpdated := d.Phase, d.UpdatedAt
	d.Phase = next
	d.UpdatedAt = s.now()

	// Persist with a context that survives the caller's cancellation so a
	// timed-out run still records its error phase.
	storeCtx := context.WithoutCancel(ctx)
	if err := s.store.Update(storeCtx, *d); err != nil {
		s.logger.ErrorContext(ctx, "deploy_service: persist failed",
			slog.String("deployment_id", d.ID),
			slog.String("phase", string(next)),
			slog.String("error", err.Error()),
		)
		d.Phase, d.UpdatedAt = prev, prevUpdated
		return fmt.Errorf("deploy_service: persist %s: %w", d.ID, err)
	}

	ev := eventFor(*d, txHash)
	s.publish(storeCtx, ev)

	if s.audit != nil {
		detail := map[string]any{
			"deployment_id": d.ID,
			"owner":         d.Owner,
			"from":          string(prev),
			"to":            string(next),
		}
		if d.Vault != "" {
			detail["vault"] = d.Vault
		}
		if txHash != "" {
			detail["tx"] = txHash
		}
		if d.Error != "" {
			detail["error"] = d.Error
		}
		if err := s.audit.Log(storeCtx, "deploy."+string(next), detail); err != nil {
			s.logger.WarnContext(ctx, "deploy_service: audit log failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "deploy_service: phase changed",
		slog.String("deployment_id", d.ID),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)
	return nil
}

func eventFor(d domain.Deployment, txHash string) domain.DeployEvent {
	return domain.DeployEvent{
		DeploymentID: d.ID,
		Owner:        d.Owner,
		Phase:        d.Phase,
		Vault:        d.Vault,
		TxHash:       txHash,
		Error:        d.Error,
		At:           d.UpdatedAt,
	}
}

func (s *DeployService) publish(ctx context.Context, ev domain.DeployEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, DeployChannelPrefix+ev.DeploymentID, payload); err != nil {
		s.logger.WarnContext(ctx, "deploy_service: publish failed", slog.String("error", err.Error()))
	}
	if err := s.bus.StreamAppend(ctx, DeployStreamPrefix+ev.DeploymentID, payload); err != nil {
		s.logger.WarnContext(ctx, "deploy_service: stream append failed", slog.String("error", err.Error()))
	}
}

// ManifestPath is the blob path of a completed deployment's manifest.
func ManifestPath(d domain.Deployment) string {
	return strings.ToLower(d.Owner) + "/" + d.ID + ".json"
}

func (s *DeployService) archive(ctx context.Context, d domain.Deployment) {
	if s.blobs == nil {
		return
	}
	body, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return
	}
	if err := s.blobs.Put(context.WithoutCancel(ctx), ManifestPath(d), bytes.NewReader(body), "application/json"); err != nil {
		s.logger.WarnContext(ctx, "deploy_service: manifest upload failed",
			slog.String("deployment_id", d.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *DeployService) notify(ctx context.Context, d domain.Deployment, txHash string) {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.notifier.NotifyDeploy(context.WithoutCancel(ctx), eventFor(d, txHash)); err != nil {
		s.logger.WarnContext(ctx, "deploy_service: notify failed", slog.String("error", err.Error()))
	}
}

// IsInputError reports whether err came from bad caller input rather than a
// chain or storage failure.
func IsInputError(err error) bool {
	var verr *sequence.ValidationError
	return errors.As(err, &verr) || errors.Is(err, domain.ErrInvalidAddress)
}
