package contract

import (
	"testing"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyInsuranceCapsPremiumAndRefundsExcess(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	f.registerFlight("ND1309", departure, "wallet-1")
	f.drainEvents()

	// Paid 2 against a cap of 1: policy carries 1, the rest is owed back.
	f.buy("ND1309", departure, "wallet-1", "passenger-1", "2")

	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		count, err := f.contract.GetPolicyCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		policy, err := f.contract.GetPolicy(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(100), policy.Value)
		assert.Equal(t, model.PolicyActive, policy.State)
		assert.Equal(t, "passenger-1", policy.PurchaserID)
		assert.Equal(t, "ND1309", policy.Flight.Name)
		assert.Nil(t, policy.SettledAt)
		return nil
	}))
	assert.Equal(t, "1", f.owed("passenger-1"))

	// The purchase sets a single event; the refund credit rides on it.
	events := f.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "InsureeCredited", events[0].EventName)
	payload := eventPayload(t, events[0])
	assert.Equal(t, "PolicyPurchased", payload["trigger"])
	assert.Equal(t, "1", payload["value"])
	assert.Equal(t, "2", payload["paid"])
	credits, ok := payload["credits"].([]interface{})
	require.True(t, ok)
	require.Len(t, credits, 1)
	credit := credits[0].(map[string]interface{})
	assert.Equal(t, "passenger-1", credit["insureeId"])
	assert.Equal(t, "1", credit["creditedAmount"])
}

func TestBuyInsuranceBelowCapKeepsFullPayment(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	f.registerFlight("ND1309", departure, "wallet-1")
	f.drainEvents()

	f.buy("ND1309", departure, "wallet-1", "passenger-1", "0.5")

	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		policy, err := f.contract.GetPolicy(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(50), policy.Value)
		return nil
	}))
	assert.Equal(t, "0", f.owed("passenger-1"))
	events := f.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "PolicyPurchased", events[0].EventName)
	payload := eventPayload(t, events[0])
	assert.Equal(t, "0.5", payload["value"])
	assert.NotContains(t, payload, "credits")
}

func TestBuyInsuranceRejectsBadInputs(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	f.registerFlight("ND1309", departure, "wallet-1")

	err := f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.BuyInsurance(ctx, "ND1309", departure, "wallet-1", "passenger-1", "0")
	})
	assert.ErrorIs(t, err, ErrZeroPayment)

	err = f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.BuyInsurance(ctx, "XX0000", departure, "wallet-1", "passenger-1", "1")
	})
	assert.ErrorIs(t, err, ErrFlightNotFound)

	err = f.tx(testOutsiderID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.BuyInsurance(ctx, "ND1309", departure, "wallet-1", "passenger-1", "1")
	})
	assert.ErrorIs(t, err, ErrPermission)
}

func TestSettleFlightCreditsEveryActivePolicy(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	f.registerFlight("ND1309", departure, "wallet-1")
	f.registerFlight("AA0042", departure, "wallet-2")
	f.buy("ND1309", departure, "wallet-1", "passenger-1", "1")
	f.buy("ND1309", departure, "wallet-1", "passenger-2", "1")
	f.buy("AA0042", departure, "wallet-2", "passenger-3", "1")
	f.drainEvents()

	f.settle("ND1309", departure, "wallet-1")

	assert.Equal(t, "1.5", f.owed("passenger-1"))
	assert.Equal(t, "1.5", f.owed("passenger-2"))
	assert.Equal(t, "0", f.owed("passenger-3"))

	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		for _, index := range []int64{0, 1} {
			policy, err := f.contract.GetPolicy(ctx, index)
			require.NoError(t, err)
			assert.Equal(t, model.PolicySettled, policy.State)
			assert.Equal(t, int64(0), policy.Value)
			assert.NotNil(t, policy.SettledAt)
		}
		untouched, err := f.contract.GetPolicy(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, model.PolicyActive, untouched.State)
		return nil
	}))

	// All credits of the settlement arrive in one event.
	events := f.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "InsureeCredited", events[0].EventName)
	payload := eventPayload(t, events[0])
	assert.Equal(t, "FlightSettled", payload["trigger"])
	assert.Equal(t, float64(2), payload["policiesSettled"])
	credits, ok := payload["credits"].([]interface{})
	require.True(t, ok)
	require.Len(t, credits, 2)
	for _, raw := range credits {
		credit := raw.(map[string]interface{})
		assert.Equal(t, "1.5", credit["creditedAmount"])
	}
}

func TestSettleFlightIsIdempotentPerPolicy(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	f.registerFlight("ND1309", departure, "wallet-1")
	f.buy("ND1309", departure, "wallet-1", "passenger-1", "1")
	f.settle("ND1309", departure, "wallet-1")
	require.Equal(t, "1.5", f.owed("passenger-1"))
	f.drainEvents()

	f.settle("ND1309", departure, "wallet-1")

	assert.Equal(t, "1.5", f.owed("passenger-1"))
	// No credit happened, so the settlement is reported bare.
	events := f.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "FlightSettled", events[0].EventName)
	payload := eventPayload(t, events[0])
	assert.Equal(t, float64(0), payload["policiesSettled"])
	assert.NotContains(t, payload, "credits")
}

func TestSettleFlightTruncatesOddHalf(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	f.registerFlight("ND1309", departure, "wallet-1")
	// 0.25 is 25 minor units; 25 + 25/2 truncates to 37.
	f.buy("ND1309", departure, "wallet-1", "passenger-1", "0.25")

	f.settle("ND1309", departure, "wallet-1")

	assert.Equal(t, "0.37", f.owed("passenger-1"))
}

func TestSettleFlightRejectsBadInputs(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	f.registerFlight("ND1309", departure, "wallet-1")

	err := f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.SettleFlight(ctx, "XX0000", departure, "wallet-1")
	})
	assert.ErrorIs(t, err, ErrFlightNotFound)

	err = f.tx(testOutsiderID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.SettleFlight(ctx, "ND1309", departure, "wallet-1")
	})
	assert.ErrorIs(t, err, ErrPermission)
}
