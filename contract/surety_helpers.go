package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/shopspring/decimal"
)

// Object types for composite keys of the registries and ledgers.
const (
	airlineObjectType   = "Airline"   // Airline records, attribute: walletID
	flightObjectType    = "Flight"    // Flight records, attribute: derived hex key
	flightSeqObjectType = "FlightSeq" // Registration-order index, attribute: zero-padded sequence number
	policyObjectType    = "Policy"    // Policy records, attribute: zero-padded index
	payoutObjectType    = "Payout"    // Owed balances, attribute: insureeID
	counterObjectType   = "Counter"   // Named monotonic counters
)

// Named counters. Zero-padding of sequence attributes keeps partial composite
// key iteration in insertion order.
const (
	counterAirlines       = "airlines"
	counterFlights        = "flights"
	counterPolicies       = "policies"
	counterFundsReceived  = "fundsReceived"
	counterFundsWithdrawn = "fundsWithdrawn"

	seqKeyWidth = 12
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *FlightSuretyContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// --- Validation Helper Functions ---

func (s *FlightSuretyContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

func (s *FlightSuretyContract) validateTimestamp(timestamp int64, field string) error {
	if timestamp <= 0 {
		return fmt.Errorf("%s must be a positive unix timestamp", field)
	}
	return nil
}

// --- Monetary Helpers ---

// parseAmount converts a decimal string of currency units into int64 minor
// units. At most amountScale fractional digits are accepted; amounts beyond
// the representable range fail with ErrOverflow.
func parseAmount(field, raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s amount '%s': %w", field, raw, err)
	}
	shifted := d.Shift(amountScale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%s amount '%s' has more than %d decimal places", field, raw, amountScale)
	}
	units := shifted.BigInt()
	if !units.IsInt64() {
		return 0, fmt.Errorf("%s amount '%s': %w", field, raw, ErrOverflow)
	}
	return units.Int64(), nil
}

// formatAmount renders minor units back into a decimal string of currency
// units ("150" -> "1.5").
func formatAmount(units int64) string {
	return decimal.New(units, -amountScale).String()
}

// addAmounts adds two non-negative amounts, failing with ErrOverflow instead
// of wrapping.
func addAmounts(a, b int64) (int64, error) {
	if b > math.MaxInt64-a {
		return 0, fmt.Errorf("adding %d to %d: %w", b, a, ErrOverflow)
	}
	return a + b, nil
}

func minAmount(a, b int64) int64 {
	if b < a {
		return b
	}
	return a
}

// --- Counter Records ---

func (s *FlightSuretyContract) createCounterKey(ctx contractapi.TransactionContextInterface, name string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(counterObjectType, []string{name})
}

// readCounter returns the named counter, zero if it was never written.
func (s *FlightSuretyContract) readCounter(ctx contractapi.TransactionContextInterface, name string) (int64, error) {
	counterKey, err := s.createCounterKey(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create counter key '%s': %w", name, err)
	}
	counterBytes, err := ctx.GetStub().GetState(counterKey)
	if err != nil {
		return 0, fmt.Errorf("ledger error reading counter '%s': %w", name, err)
	}
	if counterBytes == nil {
		return 0, nil
	}
	value, err := strconv.ParseInt(string(counterBytes), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter '%s' value '%s': %w", name, string(counterBytes), err)
	}
	return value, nil
}

func (s *FlightSuretyContract) writeCounter(ctx contractapi.TransactionContextInterface, name string, value int64) error {
	counterKey, err := s.createCounterKey(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create counter key '%s': %w", name, err)
	}
	if err := ctx.GetStub().PutState(counterKey, []byte(strconv.FormatInt(value, 10))); err != nil {
		return fmt.Errorf("failed to save counter '%s': %w", name, err)
	}
	return nil
}

// bumpCounter adds delta to the named counter with overflow checking and
// returns the new value.
func (s *FlightSuretyContract) bumpCounter(ctx contractapi.TransactionContextInterface, name string, delta int64) (int64, error) {
	current, err := s.readCounter(ctx, name)
	if err != nil {
		return 0, err
	}
	next, err := addAmounts(current, delta)
	if err != nil {
		return 0, fmt.Errorf("counter '%s': %w", name, err)
	}
	if err := s.writeCounter(ctx, name, next); err != nil {
		return 0, err
	}
	return next, nil
}

// seqAttribute renders a sequence number as a fixed-width attribute so that
// composite-key iteration order equals insertion order.
func seqAttribute(seq int64) string {
	return fmt.Sprintf("%0*d", seqKeyWidth, seq)
}

// --- Event Emission ---

// emitEvent marshals and sets a chaincode event. The host delivers at most
// one event per transaction (SetEvent keeps only the last), so each operation
// calls this exactly once with everything its listeners need. Failure is
// returned to the caller so the hosting transaction aborts without partial
// effects; a failed operation must produce no notifications.
func (s *FlightSuretyContract) emitEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) error {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for event '%s': %w", eventName, err)
	}
	if err := ctx.GetStub().SetEvent(eventName, eventBytes); err != nil {
		return fmt.Errorf("failed to set event '%s': %w", eventName, err)
	}
	return nil
}

// requireControllerAndOperational runs the two gates shared by every
// non-administrative mutating operation, operational switch first.
func (s *FlightSuretyContract) requireControllerAndOperational(ctx contractapi.TransactionContextInterface) error {
	am := NewAccessManager(ctx)
	if err := am.RequireOperational(); err != nil {
		return err
	}
	return am.RequireAuthorizedCaller()
}
