package contract

import (
	"errors"
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("flightsurety.contract")

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	amountScale          = 2 // minor units per currency unit: 10^2
)

// FlightSuretyContract provides the ledger and accounting operations for
// flight-delay insurance: airline and flight registration, policy purchase,
// settlement crediting and payout withdrawal. The voting and oracle-consensus
// procedures live outside this contract; their already-decided outcomes arrive
// here as controller calls.
// @contract:FlightSuretyContract
type FlightSuretyContract struct {
	contractapi.Contract
}

// Instantiate is called during chaincode instantiation.
func (s *FlightSuretyContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("FlightSuretyContract Instantiated/Upgraded")
}

// InitLedger writes the singleton configuration record, fixing the caller as
// the permanent owner. maxPremium and minAirlineFunding are decimal strings
// of currency units. Re-running after initialisation is rejected.
func (s *FlightSuretyContract) InitLedger(ctx contractapi.TransactionContextInterface, maxPremium, minAirlineFunding string) error {
	logger.Info("Attempting to initialise flight surety ledger...")
	am := NewAccessManager(ctx)

	alreadyInitialised, err := am.IsInitialised()
	if err != nil {
		return fmt.Errorf("InitLedger: failed to check for existing config: %w", err)
	}
	if alreadyInitialised {
		return errors.New("ledger is already initialised. InitLedger should not be re-run")
	}

	ownerFullID, err := am.GetCallerFullID()
	if err != nil {
		return fmt.Errorf("InitLedger: failed to get caller identity for ownership: %w", err)
	}

	maxPremiumUnits, err := parseAmount("maxPremium", maxPremium)
	if err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}
	if maxPremiumUnits <= 0 {
		return errors.New("InitLedger: maxPremium must be positive")
	}
	minFundingUnits, err := parseAmount("minAirlineFunding", minAirlineFunding)
	if err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}
	if minFundingUnits < 0 {
		return errors.New("InitLedger: minAirlineFunding cannot be negative")
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("InitLedger: failed to get transaction timestamp: %w", err)
	}

	cfg := model.LedgerConfig{
		ObjectType:        configObjectType,
		Owner:             ownerFullID,
		Operational:       true,
		MaxPremium:        maxPremiumUnits,
		MinAirlineFunding: minFundingUnits,
		CreatedAt:         now,
	}
	if err := am.SaveConfig(&cfg); err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}

	logger.Infof("Ledger initialised. Owner '%s', maxPremium %s, minAirlineFunding %s.",
		ownerFullID, formatAmount(maxPremiumUnits), formatAmount(minFundingUnits))
	return nil
}

// GetLedgerConfig returns the configuration with decimal-string amounts.
func (s *FlightSuretyContract) GetLedgerConfig(ctx contractapi.TransactionContextInterface) (*model.LedgerSettings, error) {
	logger.Debug("Chaincode Call: GetLedgerConfig")
	cfg, err := NewAccessManager(ctx).LoadConfig()
	if err != nil {
		return nil, err
	}
	return &model.LedgerSettings{
		Owner:             cfg.Owner,
		Operational:       cfg.Operational,
		MaxPremium:        formatAmount(cfg.MaxPremium),
		MinAirlineFunding: formatAmount(cfg.MinAirlineFunding),
	}, nil
}

// --- Access Control & Operational Gate Wrappers (Delegating to AccessManager) ---

func (s *FlightSuretyContract) AuthorizeController(ctx contractapi.TransactionContextInterface, controllerID string) error {
	logger.Infof("Chaincode Call: AuthorizeController for '%s'", controllerID)
	return NewAccessManager(ctx).Authorize(controllerID)
}

func (s *FlightSuretyContract) DeauthorizeController(ctx contractapi.TransactionContextInterface, controllerID string) error {
	logger.Infof("Chaincode Call: DeauthorizeController for '%s'", controllerID)
	return NewAccessManager(ctx).Deauthorize(controllerID)
}

func (s *FlightSuretyContract) IsControllerAuthorized(ctx contractapi.TransactionContextInterface, controllerID string) (bool, error) {
	logger.Debugf("Chaincode Call: IsControllerAuthorized for '%s'", controllerID)
	return NewAccessManager(ctx).IsAuthorized(controllerID)
}

func (s *FlightSuretyContract) SetOperational(ctx contractapi.TransactionContextInterface, operational bool) error {
	logger.Infof("Chaincode Call: SetOperational(%v)", operational)
	return NewAccessManager(ctx).SetOperational(operational)
}

func (s *FlightSuretyContract) IsOperational(ctx contractapi.TransactionContextInterface) (bool, error) {
	logger.Debug("Chaincode Call: IsOperational")
	return NewAccessManager(ctx).IsOperational()
}
