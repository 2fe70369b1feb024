package contract

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Identities used across the tests. The owner initialises the ledger; the
// controller is the authorized application caller; the outsider is neither.
const (
	testOwnerID      = "x509::CN=owner::OU=admin"
	testControllerID = "x509::CN=app::OU=controller"
	testOutsiderID   = "x509::CN=mallory::OU=client"
)

type testIdentity struct {
	id    string
	mspID string
}

var _ cid.ClientIdentity = (*testIdentity)(nil)

func (ti *testIdentity) GetID() (string, error)                         { return ti.id, nil }
func (ti *testIdentity) GetMSPID() (string, error)                      { return ti.mspID, nil }
func (ti *testIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (ti *testIdentity) AssertAttributeValue(string, string) error      { return nil }
func (ti *testIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }

type fixture struct {
	t        *testing.T
	stub     *shimtest.MockStub
	contract *FlightSuretyContract
	txSeq    int
}

func newFixture(t *testing.T) *fixture {
	stub := shimtest.NewMockStub("flightsurety", nil)
	stub.TxTimestamp = timestamppb.New(time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{t: t, stub: stub, contract: &FlightSuretyContract{}}
}

// tx runs fn as one mock transaction on behalf of the given identity.
func (f *fixture) tx(callerID string, fn func(ctx *contractapi.TransactionContext) error) error {
	f.txSeq++
	txID := fmt.Sprintf("tx%04d", f.txSeq)
	f.stub.MockTransactionStart(txID)
	defer f.stub.MockTransactionEnd(txID)

	ctx := &contractapi.TransactionContext{}
	ctx.SetStub(f.stub)
	ctx.SetClientIdentity(&testIdentity{id: callerID, mspID: "SuretyMSP"})
	return fn(ctx)
}

// setupLedger initialises the ledger with the given monetary configuration
// and authorizes the test controller.
func (f *fixture) setupLedger(maxPremium, minAirlineFunding string) {
	f.t.Helper()
	require.NoError(f.t, f.tx(testOwnerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.InitLedger(ctx, maxPremium, minAirlineFunding)
	}))
	require.NoError(f.t, f.tx(testOwnerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.AuthorizeController(ctx, testControllerID)
	}))
}

func (f *fixture) registerFlight(name string, timestamp int64, airlineID string) {
	f.t.Helper()
	require.NoError(f.t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RegisterFlight(ctx, name, timestamp, airlineID)
	}))
}

func (f *fixture) buy(name string, timestamp int64, airlineID, purchaserID, paid string) {
	f.t.Helper()
	require.NoError(f.t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.BuyInsurance(ctx, name, timestamp, airlineID, purchaserID, paid)
	}))
}

func (f *fixture) settle(name string, timestamp int64, airlineID string) {
	f.t.Helper()
	require.NoError(f.t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.SettleFlight(ctx, name, timestamp, airlineID)
	}))
}

func (f *fixture) owed(insureeID string) string {
	f.t.Helper()
	var amount string
	require.NoError(f.t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		var err error
		amount, err = f.contract.CheckOwed(ctx, insureeID)
		return err
	}))
	return amount
}

// drainEvents empties the mock stub's event channel.
func (f *fixture) drainEvents() []*peer.ChaincodeEvent {
	var events []*peer.ChaincodeEvent
	for {
		select {
		case ev := <-f.stub.ChaincodeEventsChannel:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventsNamed(events []*peer.ChaincodeEvent, name string) []*peer.ChaincodeEvent {
	var matched []*peer.ChaincodeEvent
	for _, ev := range events {
		if ev.EventName == name {
			matched = append(matched, ev)
		}
	}
	return matched
}

func eventPayload(t *testing.T, ev *peer.ChaincodeEvent) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	return payload
}
