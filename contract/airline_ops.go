package contract

import (
	"encoding/json"
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Airline Registry Operations ---

func (s *FlightSuretyContract) createAirlineKey(ctx contractapi.TransactionContextInterface, walletID string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(airlineObjectType, []string{walletID})
}

func (s *FlightSuretyContract) getAirlineByWalletID(ctx contractapi.TransactionContextInterface, walletID string) (*model.Airline, error) {
	airlineKey, err := s.createAirlineKey(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to create airline key for '%s': %w", walletID, err)
	}
	airlineBytes, err := ctx.GetStub().GetState(airlineKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving airline '%s': %w", walletID, err)
	}
	if airlineBytes == nil {
		return nil, nil
	}
	var airline model.Airline
	if err := json.Unmarshal(airlineBytes, &airline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal airline '%s': %w", walletID, err)
	}
	return &airline, nil
}

func (s *FlightSuretyContract) putAirline(ctx contractapi.TransactionContextInterface, airline *model.Airline) error {
	airlineKey, err := s.createAirlineKey(ctx, airline.WalletID)
	if err != nil {
		return fmt.Errorf("failed to create airline key for '%s': %w", airline.WalletID, err)
	}
	airlineBytes, err := json.Marshal(airline)
	if err != nil {
		return fmt.Errorf("failed to marshal airline '%s': %w", airline.WalletID, err)
	}
	if err := ctx.GetStub().PutState(airlineKey, airlineBytes); err != nil {
		return fmt.Errorf("failed to save airline '%s': %w", airline.WalletID, err)
	}
	return nil
}

// RegisterAirline creates an airline record for walletID. Whether the airline
// was entitled to join (the multi-party vote beyond the fourth airline) is
// decided by the calling controller before it gets here.
func (s *FlightSuretyContract) RegisterAirline(ctx contractapi.TransactionContextInterface, name, walletID string) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}
	callerFullID := MustGetCallerFullID(ctx)
	logger.Infof("Controller '%s' registering airline '%s' (wallet '%s')", callerFullID, name, walletID)

	if err := s.validateRequiredString(name, "name", maxStringInputLength); err != nil {
		return err
	}
	if err := s.validateRequiredString(walletID, "walletID", maxStringInputLength); err != nil {
		return err
	}

	existing, err := s.getAirlineByWalletID(ctx, walletID)
	if err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("airline with wallet '%s': %w", walletID, ErrAlreadyRegistered)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}

	airline := model.Airline{
		ObjectType:       airlineObjectType,
		WalletID:         walletID,
		Name:             name,
		IsRegistered:     true,
		ContributedFunds: 0,
		RegisteredBy:     callerFullID,
		RegisteredAt:     now,
	}
	if err := s.putAirline(ctx, &airline); err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}

	count, err := s.bumpCounter(ctx, counterAirlines, 1)
	if err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}

	if err := s.emitEvent(ctx, "AirlineRegistered", map[string]interface{}{
		"walletId":     walletID,
		"name":         name,
		"airlineCount": count,
	}); err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}
	logger.Infof("Airline '%s' registered (wallet '%s'). Total airlines: %d", name, walletID, count)
	return nil
}

// FundAirline records a funding contribution from a registered airline.
// amount is a decimal string of currency units and must be positive.
func (s *FlightSuretyContract) FundAirline(ctx contractapi.TransactionContextInterface, walletID, amount string) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("FundAirline: %w", err)
	}
	if err := s.validateRequiredString(walletID, "walletID", maxStringInputLength); err != nil {
		return err
	}
	amountUnits, err := parseAmount("funding", amount)
	if err != nil {
		return fmt.Errorf("FundAirline: %w", err)
	}
	if amountUnits <= 0 {
		return fmt.Errorf("FundAirline: funding of %s: %w", amount, ErrZeroPayment)
	}

	airline, err := s.getAirlineByWalletID(ctx, walletID)
	if err != nil {
		return fmt.Errorf("FundAirline: %w", err)
	}
	if airline == nil {
		return fmt.Errorf("FundAirline: airline with wallet '%s' is not registered", walletID)
	}

	newFunds, err := addAmounts(airline.ContributedFunds, amountUnits)
	if err != nil {
		return fmt.Errorf("FundAirline: contributed funds for '%s': %w", walletID, err)
	}
	airline.ContributedFunds = newFunds
	if err := s.putAirline(ctx, airline); err != nil {
		return fmt.Errorf("FundAirline: %w", err)
	}
	if _, err := s.bumpCounter(ctx, counterFundsReceived, amountUnits); err != nil {
		return fmt.Errorf("FundAirline: %w", err)
	}

	if err := s.emitEvent(ctx, "AirlineFunded", map[string]interface{}{
		"walletId":         walletID,
		"amount":           formatAmount(amountUnits),
		"contributedFunds": formatAmount(newFunds),
	}); err != nil {
		return fmt.Errorf("FundAirline: %w", err)
	}
	logger.Infof("Airline '%s' funded %s, contributed total now %s", walletID, formatAmount(amountUnits), formatAmount(newFunds))
	return nil
}

// GetAirlineCount returns the number of registered airlines. The external
// voting collaborator uses it to compute quorum thresholds.
func (s *FlightSuretyContract) GetAirlineCount(ctx contractapi.TransactionContextInterface) (int64, error) {
	logger.Debug("Chaincode Call: GetAirlineCount")
	return s.readCounter(ctx, counterAirlines)
}

// IsAirlineRegistered reports whether walletID belongs to a registered airline.
func (s *FlightSuretyContract) IsAirlineRegistered(ctx contractapi.TransactionContextInterface, walletID string) (bool, error) {
	logger.Debugf("Chaincode Call: IsAirlineRegistered for '%s'", walletID)
	if err := s.validateRequiredString(walletID, "walletID", maxStringInputLength); err != nil {
		return false, err
	}
	airline, err := s.getAirlineByWalletID(ctx, walletID)
	if err != nil {
		return false, err
	}
	return airline != nil && airline.IsRegistered, nil
}

// IsAirlineFunded reports whether the airline's contributions have reached the
// configured participation threshold.
func (s *FlightSuretyContract) IsAirlineFunded(ctx contractapi.TransactionContextInterface, walletID string) (bool, error) {
	logger.Debugf("Chaincode Call: IsAirlineFunded for '%s'", walletID)
	if err := s.validateRequiredString(walletID, "walletID", maxStringInputLength); err != nil {
		return false, err
	}
	cfg, err := NewAccessManager(ctx).LoadConfig()
	if err != nil {
		return false, err
	}
	airline, err := s.getAirlineByWalletID(ctx, walletID)
	if err != nil {
		return false, err
	}
	return airline != nil && airline.ContributedFunds >= cfg.MinAirlineFunding, nil
}

// GetAirline returns the full airline record.
func (s *FlightSuretyContract) GetAirline(ctx contractapi.TransactionContextInterface, walletID string) (*model.Airline, error) {
	logger.Debugf("Chaincode Call: GetAirline for '%s'", walletID)
	if err := s.validateRequiredString(walletID, "walletID", maxStringInputLength); err != nil {
		return nil, err
	}
	airline, err := s.getAirlineByWalletID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if airline == nil {
		return nil, fmt.Errorf("airline with wallet '%s' not found", walletID)
	}
	return airline, nil
}
