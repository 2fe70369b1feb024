package contract

import (
	"encoding/json"
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Insurance Ledger Operations ---

func (s *FlightSuretyContract) createPolicyKey(ctx contractapi.TransactionContextInterface, index int64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(policyObjectType, []string{seqAttribute(index)})
}

func (s *FlightSuretyContract) getPolicyByIndex(ctx contractapi.TransactionContextInterface, index int64) (*model.InsurancePolicy, error) {
	policyKey, err := s.createPolicyKey(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy key for index %d: %w", index, err)
	}
	policyBytes, err := ctx.GetStub().GetState(policyKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving policy %d: %w", index, err)
	}
	if policyBytes == nil {
		return nil, nil
	}
	var policy model.InsurancePolicy
	if err := json.Unmarshal(policyBytes, &policy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy %d: %w", index, err)
	}
	return &policy, nil
}

func (s *FlightSuretyContract) putPolicy(ctx contractapi.TransactionContextInterface, policy *model.InsurancePolicy) error {
	policyKey, err := s.createPolicyKey(ctx, policy.Index)
	if err != nil {
		return fmt.Errorf("failed to create policy key for index %d: %w", policy.Index, err)
	}
	policyBytes, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy %d: %w", policy.Index, err)
	}
	if err := ctx.GetStub().PutState(policyKey, policyBytes); err != nil {
		return fmt.Errorf("failed to save policy %d: %w", policy.Index, err)
	}
	return nil
}

// BuyInsurance appends a policy for purchaserID against the identified
// flight. The accepted premium is capped at the configured maximum; any
// excess is credited to the purchaser's owed balance as a refundable credit
// rather than transferred, so money only ever leaves through Withdraw.
func (s *FlightSuretyContract) BuyInsurance(ctx contractapi.TransactionContextInterface, name string, timestamp int64, airlineID, purchaserID, paidAmount string) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}
	if err := s.validateFlightIdentityArgs(name, timestamp, airlineID); err != nil {
		return err
	}
	if err := s.validateRequiredString(purchaserID, "purchaserID", maxStringInputLength); err != nil {
		return err
	}
	paidUnits, err := parseAmount("paidAmount", paidAmount)
	if err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}
	if paidUnits <= 0 {
		return fmt.Errorf("BuyInsurance: payment of %s: %w", paidAmount, ErrZeroPayment)
	}

	derivedKey := deriveFlightKey(airlineID, name, timestamp)
	flight, err := s.getFlightByDerivedKey(ctx, derivedKey)
	if err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}
	if flight == nil {
		return fmt.Errorf("BuyInsurance: flight '%s'/'%s'/%d: %w", airlineID, name, timestamp, ErrFlightNotFound)
	}

	cfg, err := NewAccessManager(ctx).LoadConfig()
	if err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}
	valueUnits := minAmount(paidUnits, cfg.MaxPremium)
	excessUnits := paidUnits - valueUnits

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}

	index, err := s.readCounter(ctx, counterPolicies)
	if err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}
	policy := model.InsurancePolicy{
		ObjectType: policyObjectType,
		Index:      index,
		Flight: model.FlightIdentity{
			AirlineID: airlineID,
			Name:      name,
			Timestamp: timestamp,
		},
		PurchaserID: purchaserID,
		Value:       valueUnits,
		State:       model.PolicyActive,
		PurchasedAt: now,
	}
	if err := s.putPolicy(ctx, &policy); err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}
	if err := s.writeCounter(ctx, counterPolicies, index+1); err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}

	// The whole payment is money received by the ledger, excess included.
	if _, err := s.bumpCounter(ctx, counterFundsReceived, paidUnits); err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}

	// One event per transaction: a purchase that refunds excess surfaces as
	// InsureeCredited with the purchase details attached, a plain purchase
	// as PolicyPurchased.
	payload := map[string]interface{}{
		"policyIndex": index,
		"flightKey":   derivedKey,
		"purchaserId": purchaserID,
		"value":       formatAmount(valueUnits),
		"paid":        formatAmount(paidUnits),
	}
	eventName := "PolicyPurchased"
	if excessUnits > 0 {
		credit, err := s.creditInsuree(ctx, purchaserID, excessUnits)
		if err != nil {
			return fmt.Errorf("BuyInsurance: refunding excess premium: %w", err)
		}
		eventName = "InsureeCredited"
		payload["trigger"] = "PolicyPurchased"
		payload["credits"] = []map[string]interface{}{credit}
	}
	if err := s.emitEvent(ctx, eventName, payload); err != nil {
		return fmt.Errorf("BuyInsurance: %w", err)
	}
	logger.Infof("Policy %d purchased by '%s' on flight '%s': value %s (paid %s)",
		index, purchaserID, derivedKey, formatAmount(valueUnits), formatAmount(paidUnits))
	return nil
}

// SettleFlight credits every active policy on the identified flight with one
// and a half times its value (truncating the half on odd minor units) and
// marks it settled. Settled policies are skipped, so repeated calls are
// idempotent per policy. Cost is linear in all policies ever purchased; that
// is an accepted scaling limit.
func (s *FlightSuretyContract) SettleFlight(ctx contractapi.TransactionContextInterface, name string, timestamp int64, airlineID string) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("SettleFlight: %w", err)
	}
	if err := s.validateFlightIdentityArgs(name, timestamp, airlineID); err != nil {
		return err
	}

	targetKey := deriveFlightKey(airlineID, name, timestamp)
	flight, err := s.getFlightByDerivedKey(ctx, targetKey)
	if err != nil {
		return fmt.Errorf("SettleFlight: %w", err)
	}
	if flight == nil {
		return fmt.Errorf("SettleFlight: flight '%s'/'%s'/%d: %w", airlineID, name, timestamp, ErrFlightNotFound)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("SettleFlight: %w", err)
	}
	policyCount, err := s.readCounter(ctx, counterPolicies)
	if err != nil {
		return fmt.Errorf("SettleFlight: %w", err)
	}

	var credits []map[string]interface{}
	for index := int64(0); index < policyCount; index++ {
		policy, err := s.getPolicyByIndex(ctx, index)
		if err != nil {
			return fmt.Errorf("SettleFlight: %w", err)
		}
		if policy == nil {
			logger.Warningf("SettleFlight: policy %d missing from sequence of %d. Skipping.", index, policyCount)
			continue
		}
		snapshotKey := deriveFlightKey(policy.Flight.AirlineID, policy.Flight.Name, policy.Flight.Timestamp)
		if snapshotKey != targetKey {
			continue
		}
		logger.Debugf("SettleFlight: inspecting policy %d on flight '%s', state %s, value %s",
			policy.Index, targetKey, policy.State, formatAmount(policy.Value))
		if policy.State == model.PolicySettled {
			continue
		}

		refund, err := addAmounts(policy.Value, policy.Value/2)
		if err != nil {
			return fmt.Errorf("SettleFlight: refund for policy %d: %w", policy.Index, err)
		}
		policy.Value = 0
		policy.State = model.PolicySettled
		settledAt := now
		policy.SettledAt = &settledAt
		if err := s.putPolicy(ctx, policy); err != nil {
			return fmt.Errorf("SettleFlight: %w", err)
		}
		credit, err := s.creditInsuree(ctx, policy.PurchaserID, refund)
		if err != nil {
			return fmt.Errorf("SettleFlight: crediting policy %d: %w", policy.Index, err)
		}
		credits = append(credits, credit)
	}

	// One event per transaction: the credit list rides on InsureeCredited
	// when anything was credited, otherwise the settlement is reported bare.
	payload := map[string]interface{}{
		"flightKey":       targetKey,
		"policiesSettled": len(credits),
	}
	eventName := "FlightSettled"
	if len(credits) > 0 {
		eventName = "InsureeCredited"
		payload["trigger"] = "FlightSettled"
		payload["credits"] = credits
	}
	if err := s.emitEvent(ctx, eventName, payload); err != nil {
		return fmt.Errorf("SettleFlight: %w", err)
	}
	logger.Infof("Flight '%s' settled: %d policies credited by controller '%s'", targetKey, len(credits), MustGetCallerFullID(ctx))
	return nil
}

// GetPolicyCount returns the length of the policy sequence.
func (s *FlightSuretyContract) GetPolicyCount(ctx contractapi.TransactionContextInterface) (int64, error) {
	logger.Debug("Chaincode Call: GetPolicyCount")
	return s.readCounter(ctx, counterPolicies)
}

// GetPolicy returns the policy at the given sequence index.
func (s *FlightSuretyContract) GetPolicy(ctx contractapi.TransactionContextInterface, index int64) (*model.InsurancePolicy, error) {
	logger.Debugf("Chaincode Call: GetPolicy %d", index)
	if index < 0 {
		return nil, fmt.Errorf("policy index %d cannot be negative", index)
	}
	policy, err := s.getPolicyByIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("policy %d not found", index)
	}
	return policy, nil
}
