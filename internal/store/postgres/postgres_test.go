package postgres

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/matchbox?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "matchbox", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationFilesOrdered(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "001_deployments.sql", names[0])
	assert.Equal(t, "002_audit_log.sql", names[1])
}

// fakeRow feeds fixed values into Scan destinations.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *[]byte:
			*p = r.vals[i].([]byte)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return errors.New("unexpected scan destination")
		}
	}
	return nil
}

func TestScanDeployment(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	legs, _ := json.Marshal([]domain.Leg{{ID: "a", Market: "0xabc", Outcome: domain.OutcomeYes, IsInitial: true}})
	rules, _ := json.Marshal([]domain.RuleView{{ConditionID: "0xabc", OutcomeIndex: "1"}})

	d, err := scanDeployment(fakeRow{vals: []any{
		"dep-1", "0xowner", "0xvault", "0xsalt", "0xc", "0xi",
		legs, rules, "error", "initialize", "boom", now, now,
	}})
	require.NoError(t, err)
	assert.Equal(t, "dep-1", d.ID)
	assert.Equal(t, domain.PhaseError, d.Phase)
	assert.Equal(t, domain.StepInitialize, d.FailedStep)
	require.Len(t, d.Legs, 1)
	assert.True(t, d.Legs[0].IsInitial)
	require.Len(t, d.Rules, 1)
	assert.Equal(t, "1", d.Rules[0].OutcomeIndex)
}

func TestScanDeployment_BadJSON(t *testing.T) {
	now := time.Now()
	_, err := scanDeployment(fakeRow{vals: []any{
		"dep-1", "o", "", "", "", "", []byte("{"), []byte("[]"), "idle", "", "", now, now,
	}})
	assert.Error(t, err)
}

func TestMarshalSequence_NilBecomesEmptyArray(t *testing.T) {
	legs, rules, err := marshalSequence(domain.Deployment{})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(legs))
	assert.JSONEq(t, "[]", string(rules))
}
