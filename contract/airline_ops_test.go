package contract

import (
	"testing"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAirline(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")

	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RegisterAirline(ctx, "Atlas Air", "wallet-1")
	}))

	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		count, err := f.contract.GetAirlineCount(ctx)
		assert.Equal(t, int64(1), count)
		registered, err2 := f.contract.IsAirlineRegistered(ctx, "wallet-1")
		assert.True(t, registered)
		require.NoError(t, err2)
		airline, err3 := f.contract.GetAirline(ctx, "wallet-1")
		require.NoError(t, err3)
		assert.Equal(t, "Atlas Air", airline.Name)
		assert.Equal(t, int64(0), airline.ContributedFunds)
		return err
	}))

	// Duplicate wallet is rejected and the count stays put.
	err := f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RegisterAirline(ctx, "Atlas Air Again", "wallet-1")
	})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		count, err := f.contract.GetAirlineCount(ctx)
		assert.Equal(t, int64(1), count)
		return err
	}))
}

func TestRegisterAirlineRequiresAuthorization(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")

	err := f.tx(testOutsiderID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RegisterAirline(ctx, "Atlas Air", "wallet-1")
	})
	assert.ErrorIs(t, err, ErrPermission)
}

func TestFundAirline(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RegisterAirline(ctx, "Atlas Air", "wallet-1")
	}))

	err := f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.FundAirline(ctx, "wallet-1", "0")
	})
	assert.ErrorIs(t, err, ErrZeroPayment)
	err = f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.FundAirline(ctx, "wallet-1", "-3")
	})
	assert.ErrorIs(t, err, ErrZeroPayment)

	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.FundAirline(ctx, "wallet-1", "5")
	}))
	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		funded, err := f.contract.IsAirlineFunded(ctx, "wallet-1")
		assert.False(t, funded, "5 is below the 10 threshold")
		return err
	}))

	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.FundAirline(ctx, "wallet-1", "5")
	}))
	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		funded, err := f.contract.IsAirlineFunded(ctx, "wallet-1")
		assert.True(t, funded)
		airline, err2 := f.contract.GetAirline(ctx, "wallet-1")
		require.NoError(t, err2)
		assert.Equal(t, int64(1000), airline.ContributedFunds)
		return err
	}))
}

func TestFundAirlineUnregisteredWallet(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")

	err := f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.FundAirline(ctx, "wallet-ghost", "5")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestFundAirlineOverflowFailsInsteadOfWrapping(t *testing.T) {
	f := newFixture(t)
	f.setupLedger("1", "10")
	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RegisterAirline(ctx, "Atlas Air", "wallet-1")
	}))

	// Largest representable amount in minor units.
	require.NoError(t, f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.FundAirline(ctx, "wallet-1", "92233720368547758.07")
	}))
	err := f.tx(testControllerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.FundAirline(ctx, "wallet-1", "0.01")
	})
	assert.ErrorIs(t, err, ErrOverflow)
}
