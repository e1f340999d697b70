package ingestion_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/ingestion"
	"TokenLedger/internal/testutil"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settled struct{ ack, nak, term int }

func (s *settled) wire(raw ingestion.RawCommand) ingestion.RawCommand {
	raw.Ack = func() { s.ack++ }
	raw.Nak = func() { s.nak++ }
	raw.Term = func() { s.term++ }
	return raw
}

func whitelistMsg(t *testing.T, id string, from string) ingestion.RawCommand {
	return rawFromJSON(t, "mzcal.commands.whitelist_add", map[string]interface{}{
		"request_id": id,
		"caller":     from,
		"account":    testutil.Alice.Hex(),
	})
}

func TestDispatcher_AckPolicy(t *testing.T) {
	e, _, _ := testutil.NewTestEngine()
	d := ingestion.NewDispatcher(e, nil, nil, zerolog.Nop())

	var s settled
	assert.Equal(t, ingestion.OutcomeApplied, d.Handle(s.wire(whitelistMsg(t, "w-1", testutil.Deployer.Hex()))))
	assert.Equal(t, settled{ack: 1}, s)
	assert.True(t, e.IsWhitelisted(testutil.Alice))

	s = settled{}
	assert.Equal(t, ingestion.OutcomeDuplicate, d.Handle(s.wire(whitelistMsg(t, "w-1", testutil.Deployer.Hex()))))
	assert.Equal(t, settled{ack: 1}, s)

	s = settled{}
	assert.Equal(t, ingestion.OutcomeRejected, d.Handle(s.wire(whitelistMsg(t, "w-2", testutil.Bob.Hex()))))
	assert.Equal(t, settled{ack: 1}, s, "domain rejection is final")

	s = settled{}
	bad := s.wire(ingestion.RawCommand{Subject: "mzcal.commands.whitelist_add", Data: []byte("not json")})
	assert.Equal(t, ingestion.OutcomeParseError, d.Handle(bad))
	assert.Equal(t, settled{term: 1}, s)
}

type failingProcessor struct{}

func (failingProcessor) Process(command.Command) (*core.Receipt, error) {
	return nil, errors.New("connection reset")
}

func TestDispatcher_InfrastructureFailureNaks(t *testing.T) {
	d := ingestion.NewDispatcher(failingProcessor{}, nil, nil, zerolog.Nop())

	var s settled
	assert.Equal(t, ingestion.OutcomeFailed, d.Handle(s.wire(whitelistMsg(t, "w-3", testutil.Deployer.Hex()))))
	assert.Equal(t, settled{nak: 1}, s)
}

func TestDispatcher_RunDrainsInOrder(t *testing.T) {
	e, _, _ := testutil.NewTestEngine()
	ch := make(chan ingestion.RawCommand, 2)
	ch <- rawFromJSON(t, "mzcal.commands.add_admin", map[string]interface{}{
		"request_id": "a-1", "caller": testutil.Deployer.Hex(), "account": testutil.Bob.Hex(),
	})
	ch <- whitelistMsg(t, "w-4", testutil.Bob.Hex())
	close(ch)

	d := ingestion.NewDispatcher(e, ch, nil, zerolog.Nop())
	require.NoError(t, d.Run(context.Background()))
	assert.True(t, e.IsAdmin(testutil.Bob))
	assert.True(t, e.IsWhitelisted(testutil.Alice), "bob was admin by the time his command ran")
}
