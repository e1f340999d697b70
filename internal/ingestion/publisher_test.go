package ingestion_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/ingestion"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/testutil"
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct{ msgs []published }

func (f *fakePublisher) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return &jetstream.PubAck{Sequence: uint64(len(f.msgs))}, nil
}

func TestOutboundPublisher_PublishesEveryEvent(t *testing.T) {
	e, persistChan, _ := testutil.NewTestEngine()
	_, err := e.Process(&command.Mint{
		Header: testutil.Header(testutil.Deployer), Book: ledger.BookToken,
		To: testutil.Alice, AssetID: ledger.MainID, Amount: testutil.U(9),
	})
	require.NoError(t, err)
	_, err = e.Process(&command.AddAdmin{Header: testutil.Header(testutil.Deployer), Account: testutil.Bob})
	require.NoError(t, err)

	fp := &fakePublisher{}
	op := ingestion.NewOutboundPublisher(fp, 8, nil, zerolog.Nop())
	for _, out := range testutil.Drain(persistChan) {
		require.NoError(t, op.Publish(context.Background(), out))
	}

	require.Len(t, fp.msgs, 2)
	assert.Equal(t, "token.ledger.events.TransferSingle", fp.msgs[0].subject)
	assert.Equal(t, "token.ledger.events.AdminAdded", fp.msgs[1].subject)

	var body ingestion.PublishedEvent
	require.NoError(t, json.Unmarshal(fp.msgs[0].data, &body))
	assert.Equal(t, int64(1), body.Sequence)
	assert.Equal(t, "TransferSingle", body.Type)
	assert.Contains(t, string(body.Data), `"value":"9"`)
}

func TestOutboundPublisher_OfferDropsWhenFull(t *testing.T) {
	e, persistChan, _ := testutil.NewTestEngine()
	for i := 0; i < 3; i++ {
		_, err := e.Process(&command.WhitelistAdd{Header: testutil.Header(testutil.Deployer), Account: testutil.Addr(uint64(0x100 + i))})
		require.NoError(t, err)
	}

	fp := &fakePublisher{}
	op := ingestion.NewOutboundPublisher(fp, 2, nil, zerolog.Nop())
	op.Offer(testutil.Drain(persistChan))

	assert.Equal(t, 2, op.Drain(context.Background()))
	assert.Len(t, fp.msgs, 2, "third envelope was dropped")
}
