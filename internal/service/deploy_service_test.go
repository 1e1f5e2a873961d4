package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachemem "github.com/alanyoungcy/matchbox/internal/cache/memory"
	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/notify"
	"github.com/alanyoungcy/matchbox/internal/sequence"
	storemem "github.com/alanyoungcy/matchbox/internal/store/memory"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	newVault = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

type fakeChain struct {
	mu         sync.Mutex
	createErr  error
	initErr    error
	createHash common.Hash
	initHash   common.Hash
	block      chan struct{}
	creates    int
	inits      []common.Address
	initRules  [][]domain.Rule
}

func (f *fakeChain) From() common.Address { return deployer }

func (f *fakeChain) CreateVault(ctx context.Context, _ [32]byte) (common.Address, common.Hash, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return common.Address{}, common.Hash{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return common.Address{}, f.createHash, f.createErr
	}
	return newVault, f.createHash, nil
}

func (f *fakeChain) InitializeSequence(_ context.Context, vault common.Address, rules []domain.Rule) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, vault)
	f.initRules = append(f.initRules, rules)
	return f.initHash, f.initErr
}

type memBlobs struct {
	mu    sync.Mutex
	puts  map[string][]byte
	types map[string]string
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.puts == nil {
		m.puts = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.puts[path] = b
	m.types[path] = contentType
	return nil
}

type recordingSender struct {
	mu  sync.Mutex
	got []notify.Message
}

func (r *recordingSender) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
	return nil
}

func (r *recordingSender) Name() string { return "rec" }

type harness struct {
	svc    *DeployService
	chain  *fakeChain
	store  *storemem.DeploymentStore
	audit  *storemem.AuditStore
	bus    *cachemem.SignalBus
	blobs  *memBlobs
	sender *recordingSender
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, fc *fakeChain) *harness {
	t.Helper()
	h := &harness{
		chain:  fc,
		store:  storemem.NewDeploymentStore(),
		audit:  storemem.NewAuditStore(),
		bus:    cachemem.NewSignalBus(),
		blobs:  &memBlobs{},
		sender: &recordingSender{},
	}
	h.svc = NewDeployService(fc, h.store, DeployOptions{
		Locks:     cachemem.NewLockManager(),
		Bus:       h.bus,
		Audit:     h.audit,
		Blobs:     h.blobs,
		Notifier:  notify.NewNotifier([]notify.Sender{h.sender}, nil, quietLogger()),
		TxTimeout: 5 * time.Second,
	}, quietLogger())
	h.svc.newSalt = func() ([32]byte, error) { return [32]byte{7}, nil }
	return h
}

func market(c string) string { return "0x" + strings.Repeat(c, 64) }

func validLegs() []domain.Leg {
	return []domain.Leg{
		{Market: market("a"), Outcome: domain.OutcomeYes, Amount: "100", MaxPrice: "0.5", MinPrice: "0.1"},
		{Market: market("b"), Outcome: domain.OutcomeNo, MaxPrice: "0.9", MinPrice: "0"},
	}
}

func phasesOf(t *testing.T, h *harness, id string) []domain.DeployPhase {
	t.Helper()
	events, err := h.svc.Events(context.Background(), id, "", 0)
	require.NoError(t, err)
	var out []domain.DeployPhase
	for _, ev := range events {
		out = append(out, ev.Phase)
	}
	return out
}

func TestDeploy_Success(t *testing.T) {
	fc := &fakeChain{createHash: common.HexToHash("0xc1"), initHash: common.HexToHash("0xc2")}
	h := newHarness(t, fc)

	d, err := h.svc.Deploy(context.Background(), "", validLegs())
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseComplete, d.Phase)
	assert.Equal(t, deployer.Hex(), d.Owner)
	assert.Equal(t, newVault.Hex(), d.Vault)
	assert.Equal(t, common.HexToHash("0xc1").Hex(), d.CreateTxHash)
	assert.Equal(t, common.HexToHash("0xc2").Hex(), d.InitTxHash)
	assert.Equal(t, common.Hash([32]byte{7}).Hex(), d.Salt)
	require.Len(t, d.Legs, 2)
	assert.True(t, d.Legs[0].IsInitial)
	assert.False(t, d.Legs[1].IsInitial)
	assert.NotEmpty(t, d.Legs[1].ID)

	require.Len(t, fc.inits, 1)
	assert.Equal(t, newVault, fc.inits[0])
	require.Len(t, fc.initRules[0], 2)
	assert.Equal(t, "100000000", fc.initRules[0][0].SpecificAmount.String())
	assert.True(t, fc.initRules[0][1].UseAllFunds)

	stored, err := h.svc.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, stored.Phase)

	assert.Equal(t, []domain.DeployPhase{domain.PhaseCreating, domain.PhaseInitializing, domain.PhaseComplete}, phasesOf(t, h, d.ID))

	var events []string
	for _, e := range h.audit.Entries() {
		events = append(events, e.Event)
	}
	assert.Equal(t, []string{"deploy.creating", "deploy.initializing", "deploy.complete"}, events)

	manifest := h.blobs.puts[ManifestPath(d)]
	require.NotEmpty(t, manifest)
	assert.Equal(t, "application/json", h.blobs.types[ManifestPath(d)])
	var archived domain.Deployment
	require.NoError(t, json.Unmarshal(manifest, &archived))
	assert.Equal(t, d.Vault, archived.Vault)

	require.Len(t, h.sender.got, 1)
	assert.False(t, h.sender.got[0].Failed)
}

func TestDeploy_InvalidSequenceChangesNothing(t *testing.T) {
	fc := &fakeChain{}
	h := newHarness(t, fc)

	legs := validLegs()
	legs[1].MaxPrice = "1.5"
	_, err := h.svc.Deploy(context.Background(), "", legs)

	var verr *sequence.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.True(t, IsInputError(err))
	assert.Zero(t, fc.creates)

	list, err := h.svc.List(context.Background(), deployer.Hex(), domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, h.audit.Entries())
}

func TestDeploy_EmptySequence(t *testing.T) {
	h := newHarness(t, &fakeChain{})
	_, err := h.svc.Deploy(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, sequence.MsgNoLegs, err.Error())
}

func TestDeploy_BadOwner(t *testing.T) {
	h := newHarness(t, &fakeChain{})
	_, err := h.svc.Deploy(context.Background(), "not-an-address", validLegs())
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	assert.True(t, IsInputError(err))
}

func TestDeploy_CreateFailureSkipsInitialize(t *testing.T) {
	fc := &fakeChain{createErr: errors.New("insufficient funds"), createHash: common.HexToHash("0xc1")}
	h := newHarness(t, fc)

	d, err := h.svc.Deploy(context.Background(), "", validLegs())
	require.Error(t, err)
	assert.False(t, IsInputError(err))

	assert.Equal(t, domain.PhaseError, d.Phase)
	assert.Equal(t, domain.StepCreate, d.FailedStep)
	assert.Equal(t, "insufficient funds", d.Error)
	assert.Equal(t, common.HexToHash("0xc1").Hex(), d.CreateTxHash)
	assert.Empty(t, d.Vault)
	assert.Empty(t, fc.inits, "initialize must not run without a vault address")

	assert.Equal(t, []domain.DeployPhase{domain.PhaseCreating, domain.PhaseError}, phasesOf(t, h, d.ID))
	assert.Empty(t, h.blobs.puts)
	require.Len(t, h.sender.got, 1)
	assert.True(t, h.sender.got[0].Failed)
}

func TestDeploy_InitializeFailureKeepsVault(t *testing.T) {
	fc := &fakeChain{initErr: domain.ErrReverted}
	h := newHarness(t, fc)

	d, err := h.svc.Deploy(context.Background(), "", validLegs())
	require.Error(t, err)
	assert.Equal(t, domain.PhaseError, d.Phase)
	assert.Equal(t, domain.StepInitialize, d.FailedStep)
	assert.Equal(t, newVault.Hex(), d.Vault)
	assert.Equal(t, []domain.DeployPhase{domain.PhaseCreating, domain.PhaseInitializing, domain.PhaseError}, phasesOf(t, h, d.ID))
}

func TestReset(t *testing.T) {
	fc := &fakeChain{createErr: errors.New("boom")}
	h := newHarness(t, fc)
	ctx := context.Background()

	d, err := h.svc.Deploy(ctx, "", validLegs())
	require.Error(t, err)

	reset, err := h.svc.Reset(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseIdle, reset.Phase)
	assert.Empty(t, reset.Error)
	assert.Empty(t, reset.FailedStep)

	_, err = h.svc.Reset(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)

	_, err = h.svc.Reset(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The owner lock was released, so a fresh attempt can run.
	fc.createErr = nil
	d2, err := h.svc.Deploy(ctx, "", validLegs())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, d2.Phase)
}

func TestStart_RunsInBackgroundAndHoldsOwnerLock(t *testing.T) {
	fc := &fakeChain{block: make(chan struct{})}
	h := newHarness(t, fc)
	ctx := context.Background()

	sub, err := h.bus.Subscribe(ctx, DeployChannelPrefix+"*")
	require.NoError(t, err)

	d, err := h.svc.Start(ctx, "", validLegs())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCreating, d.Phase)

	_, err = h.svc.Start(ctx, "", validLegs())
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	close(fc.block)
	h.svc.Wait()

	got, err := h.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, got.Phase)

	var seen []domain.DeployPhase
	for len(seen) < 3 {
		select {
		case payload := <-sub:
			var ev domain.DeployEvent
			require.NoError(t, json.NewDecoder(bytes.NewReader(payload)).Decode(&ev))
			assert.Equal(t, d.ID, ev.DeploymentID)
			seen = append(seen, ev.Phase)
		case <-time.After(2 * time.Second):
			t.Fatalf("only saw %v", seen)
		}
	}
	assert.Equal(t, []domain.DeployPhase{domain.PhaseCreating, domain.PhaseInitializing, domain.PhaseComplete}, seen)
}

func TestDeploy_WithoutOptionalDeps(t *testing.T) {
	svc := NewDeployService(&fakeChain{}, storemem.NewDeploymentStore(), DeployOptions{}, quietLogger())
	d, err := svc.Deploy(context.Background(), "", validLegs())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, d.Phase)

	events, err := svc.Events(context.Background(), d.ID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

// flakyStore fails the Update calls whose 1-based sequence number is in
// failOn.
type flakyStore struct {
	*storemem.DeploymentStore
	mu      sync.Mutex
	updates int
	failOn  map[int]bool
}

func (f *flakyStore) Update(ctx context.Context, d domain.Deployment) error {
	f.mu.Lock()
	f.updates++
	n := f.updates
	f.mu.Unlock()
	if f.failOn[n] {
		return errors.New("connection reset")
	}
	return f.DeploymentStore.Update(ctx, d)
}

func newFlakyService(fc *fakeChain, failOn ...int) (*DeployService, *flakyStore, *memBlobs) {
	store := &flakyStore{DeploymentStore: storemem.NewDeploymentStore(), failOn: map[int]bool{}}
	for _, n := range failOn {
		store.failOn[n] = true
	}
	blobs := &memBlobs{}
	svc := NewDeployService(fc, store, DeployOptions{
		Locks: cachemem.NewLockManager(),
		Bus:   cachemem.NewSignalBus(),
		Blobs: blobs,
	}, quietLogger())
	return svc, store, blobs
}

func TestDeploy_PersistFailureBeforeInitialize(t *testing.T) {
	fc := &fakeChain{}
	// Update 1 records creating, update 2 would record initializing.
	svc, store, _ := newFlakyService(fc, 2)

	d, err := svc.Deploy(context.Background(), "", validLegs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, IsInputError(err))

	assert.Empty(t, fc.inits, "initialize must not run when the vault was not recorded")
	assert.Equal(t, domain.PhaseError, d.Phase)
	assert.Equal(t, domain.StepInitialize, d.FailedStep)
	assert.Equal(t, newVault.Hex(), d.Vault)

	stored, err := store.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, stored.Phase)
}

func TestDeploy_PersistFailureOnComplete(t *testing.T) {
	fc := &fakeChain{}
	svc, store, blobs := newFlakyService(fc, 3)

	d, err := svc.Deploy(context.Background(), "", validLegs())
	require.Error(t, err)
	assert.NotEqual(t, domain.PhaseComplete, d.Phase)
	assert.Equal(t, domain.PhaseError, d.Phase)
	assert.Len(t, fc.inits, 1)
	assert.Empty(t, blobs.puts)

	stored, err := store.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, stored.Phase)
}

func TestDeploy_StoreDownAfterCreate(t *testing.T) {
	fc := &fakeChain{}
	svc, store, _ := newFlakyService(fc, 2, 3, 4)

	d, err := svc.Deploy(context.Background(), "", validLegs())
	require.Error(t, err)
	assert.Equal(t, domain.PhaseCreating, d.Phase)
	assert.Empty(t, fc.inits)

	stored, err := store.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCreating, stored.Phase)

	// The owner lock is released once the run ends.
	fc2 := &fakeChain{}
	store.failOn = map[int]bool{}
	svc.chain = fc2
	_, err = svc.Deploy(context.Background(), "", validLegs())
	assert.NoError(t, err)
}

func TestReset_ClearsAttemptState(t *testing.T) {
	fc := &fakeChain{initErr: domain.ErrReverted, createHash: common.HexToHash("0xc1"), initHash: common.HexToHash("0xc2")}
	h := newHarness(t, fc)
	ctx := context.Background()

	d, err := h.svc.Deploy(ctx, "", validLegs())
	require.ErrorIs(t, err, domain.ErrReverted)
	require.NotEmpty(t, d.Vault)

	reset, err := h.svc.Reset(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, reset.ID)
	assert.Equal(t, d.Owner, reset.Owner)
	assert.Len(t, reset.Legs, 2)
	assert.Empty(t, reset.Vault)
	assert.Empty(t, reset.Salt)
	assert.Empty(t, reset.CreateTxHash)
	assert.Empty(t, reset.InitTxHash)

	stored, err := h.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Vault)
	assert.Equal(t, domain.PhaseIdle, stored.Phase)
}
