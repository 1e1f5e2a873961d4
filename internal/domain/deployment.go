package domain

import "time"

// DeployPhase tracks a vault deployment through its lifecycle.
type DeployPhase string

const (
	PhaseIdle         DeployPhase = "idle"
	PhaseCreating     DeployPhase = "creating"
	PhaseInitializing DeployPhase = "initializing"
	PhaseComplete     DeployPhase = "complete"
	PhaseError        DeployPhase = "error"
)

// Terminal reports whether no further transition happens without a reset.
func (p DeployPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// CanTransition reports whether moving from p to next is allowed.
func (p DeployPhase) CanTransition(next DeployPhase) bool {
	switch p {
	case PhaseIdle:
		return next == PhaseCreating
	case PhaseCreating:
		return next == PhaseInitializing || next == PhaseError
	case PhaseInitializing:
		return next == PhaseComplete || next == PhaseError
	case PhaseError:
		return next == PhaseIdle
	}
	return false
}

// DeployStep names the chain call that failed.
type DeployStep string

const (
	StepCreate     DeployStep = "create"
	StepInitialize DeployStep = "initialize"
)

// Deployment is one attempt to create a vault and register a sequence.
type Deployment struct {
	ID           string      `json:"id"`
	Owner        string      `json:"owner"`
	Vault        string      `json:"vault,omitempty"`
	Salt         string      `json:"salt,omitempty"`
	CreateTxHash string      `json:"createTxHash,omitempty"`
	InitTxHash   string      `json:"initTxHash,omitempty"`
	Legs         []Leg       `json:"legs"`
	Rules        []RuleView  `json:"rules"`
	Phase        DeployPhase `json:"phase"`
	FailedStep   DeployStep  `json:"failedStep,omitempty"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// DeployEvent is published on every phase change.
type DeployEvent struct {
	DeploymentID string      `json:"deploymentId"`
	Owner        string      `json:"owner"`
	Phase        DeployPhase `json:"phase"`
	Vault        string      `json:"vault,omitempty"`
	TxHash       string      `json:"txHash,omitempty"`
	Error        string      `json:"error,omitempty"`
	At           time.Time   `json:"at"`
}

// VaultStatus is a read of a deployed vault's state.
type VaultStatus struct {
	Address     string     `json:"address"`
	Active      bool       `json:"active"`
	CurrentStep uint64     `json:"currentStep"`
	Rules       []RuleView `json:"rules"`
}
