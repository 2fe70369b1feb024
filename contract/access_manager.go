package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var amLogger = flogging.MustGetLogger("flightsurety.access")

// Object types for composite keys.
const (
	configObjectType     = "Config"     // Singleton LedgerConfig record
	controllerObjectType = "Controller" // One entry per authorized controller, attribute: full ID
)

const configSingletonKey = "singleton"

// AccessManager owns the authorization state: the fixed owner identity, the
// set of authorized controllers and the global operational switch. All other
// components consult it read-only through the require* guards.
type AccessManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewAccessManager creates a new instance of AccessManager.
func NewAccessManager(ctx contractapi.TransactionContextInterface) *AccessManager {
	return &AccessManager{Ctx: ctx}
}

// --- Key Creation Helpers (using Composite Keys) ---

func (am *AccessManager) createConfigKey() (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(configObjectType, []string{configSingletonKey})
}

func (am *AccessManager) createControllerKey(controllerID string) (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(controllerObjectType, []string{controllerID})
}

// --- Configuration Record ---

// LoadConfig retrieves the singleton ledger configuration. It fails if the
// ledger has never been initialised.
func (am *AccessManager) LoadConfig() (*model.LedgerConfig, error) {
	cfgKey, err := am.createConfigKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create config key: %w", err)
	}
	cfgBytes, err := am.Ctx.GetStub().GetState(cfgKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving config: %w", err)
	}
	if cfgBytes == nil {
		return nil, errors.New("ledger has not been initialised; call InitLedger first")
	}
	var cfg model.LedgerConfig
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig persists the singleton ledger configuration.
func (am *AccessManager) SaveConfig(cfg *model.LedgerConfig) error {
	cfgKey, err := am.createConfigKey()
	if err != nil {
		return fmt.Errorf("failed to create config key: %w", err)
	}
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger config: %w", err)
	}
	if err := am.Ctx.GetStub().PutState(cfgKey, cfgBytes); err != nil {
		return fmt.Errorf("failed to save ledger config: %w", err)
	}
	return nil
}

// IsInitialised reports whether the singleton config record exists.
func (am *AccessManager) IsInitialised() (bool, error) {
	cfgKey, err := am.createConfigKey()
	if err != nil {
		return false, fmt.Errorf("failed to create config key: %w", err)
	}
	cfgBytes, err := am.Ctx.GetStub().GetState(cfgKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking config record: %w", err)
	}
	return cfgBytes != nil, nil
}

// --- Caller Identity ---

// GetCallerFullID retrieves the full X.509 ID of the current transactor.
func (am *AccessManager) GetCallerFullID() (string, error) {
	clientIdentity := am.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	return id, nil
}

// MustGetCallerFullID is a logging utility, returning a placeholder on error.
func MustGetCallerFullID(ctx contractapi.TransactionContextInterface) string {
	clientIdentity := ctx.GetClientIdentity()
	if clientIdentity == nil {
		amLogger.Error("MustGetCallerFullID: client identity is nil from context. Returning placeholder.")
		return "ERROR_NIL_CLIENT_IDENTITY"
	}
	id, err := clientIdentity.GetID()
	if err != nil || id == "" {
		amLogger.Errorf("MustGetCallerFullID: failed to get client identity ID: %v. Returning placeholder.", err)
		return "ERROR_GETTING_CALLER_ID"
	}
	return id
}

// --- Guards ---

// RequireOwner fails with ErrPermission unless the caller is the owner fixed
// at initialisation. There is no transfer-of-ownership operation.
func (am *AccessManager) RequireOwner() error {
	cfg, err := am.LoadConfig()
	if err != nil {
		return err
	}
	callerFullID, err := am.GetCallerFullID()
	if err != nil {
		return fmt.Errorf("failed to get caller's FullID for owner check: %w", err)
	}
	if callerFullID != cfg.Owner {
		return fmt.Errorf("caller '%s' is not the contract owner: %w", callerFullID, ErrPermission)
	}
	return nil
}

// RequireAuthorizedCaller fails with ErrPermission unless the caller is in
// the authorized-controller set. Ownership alone does not grant controller
// access; the owner must authorize itself like any other controller.
func (am *AccessManager) RequireAuthorizedCaller() error {
	callerFullID, err := am.GetCallerFullID()
	if err != nil {
		return fmt.Errorf("failed to get caller's FullID for authorization check: %w", err)
	}
	authorized, err := am.IsAuthorized(callerFullID)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("caller '%s' is not an authorized controller: %w", callerFullID, ErrPermission)
	}
	return nil
}

// RequireOperational fails with ErrInoperative while the global switch is
// off. SetOperational itself is exempt so the owner can always recover.
func (am *AccessManager) RequireOperational() error {
	cfg, err := am.LoadConfig()
	if err != nil {
		return err
	}
	if !cfg.Operational {
		return fmt.Errorf("operation rejected: %w", ErrInoperative)
	}
	return nil
}

// --- Controller Set Management (owner only) ---

// Authorize adds a controller to the authorized set. Fails with
// ErrAlreadyAuthorized if the controller is already present. Like every
// mutation except the operational switch itself, it is blocked while the
// switch is off.
func (am *AccessManager) Authorize(controllerID string) error {
	if err := am.RequireOperational(); err != nil {
		return err
	}
	if err := am.RequireOwner(); err != nil {
		return err
	}
	controllerID = strings.TrimSpace(controllerID)
	if controllerID == "" {
		return errors.New("controllerID cannot be empty")
	}

	controllerKey, err := am.createControllerKey(controllerID)
	if err != nil {
		return fmt.Errorf("failed to create controller key for '%s': %w", controllerID, err)
	}
	existing, err := am.Ctx.GetStub().GetState(controllerKey)
	if err != nil {
		return fmt.Errorf("ledger error checking controller '%s': %w", controllerID, err)
	}
	if existing != nil {
		return fmt.Errorf("controller '%s': %w", controllerID, ErrAlreadyAuthorized)
	}

	if err := am.Ctx.GetStub().PutState(controllerKey, []byte("true")); err != nil {
		return fmt.Errorf("failed to save authorization entry for '%s': %w", controllerID, err)
	}
	amLogger.Infof("Controller '%s' authorized by owner '%s'.", controllerID, MustGetCallerFullID(am.Ctx))
	return nil
}

// Deauthorize removes a controller from the authorized set. Fails with
// ErrNotAuthorized if the controller is absent. Blocked while the
// operational switch is off.
func (am *AccessManager) Deauthorize(controllerID string) error {
	if err := am.RequireOperational(); err != nil {
		return err
	}
	if err := am.RequireOwner(); err != nil {
		return err
	}
	controllerID = strings.TrimSpace(controllerID)
	if controllerID == "" {
		return errors.New("controllerID cannot be empty")
	}

	controllerKey, err := am.createControllerKey(controllerID)
	if err != nil {
		return fmt.Errorf("failed to create controller key for '%s': %w", controllerID, err)
	}
	existing, err := am.Ctx.GetStub().GetState(controllerKey)
	if err != nil {
		return fmt.Errorf("ledger error checking controller '%s': %w", controllerID, err)
	}
	if existing == nil {
		return fmt.Errorf("controller '%s': %w", controllerID, ErrNotAuthorized)
	}

	if err := am.Ctx.GetStub().DelState(controllerKey); err != nil {
		return fmt.Errorf("failed to remove authorization entry for '%s': %w", controllerID, err)
	}
	amLogger.Infof("Controller '%s' deauthorized by owner '%s'.", controllerID, MustGetCallerFullID(am.Ctx))
	return nil
}

// IsAuthorized reports whether a controller is in the authorized set.
func (am *AccessManager) IsAuthorized(controllerID string) (bool, error) {
	controllerID = strings.TrimSpace(controllerID)
	if controllerID == "" {
		return false, errors.New("controllerID cannot be empty")
	}
	controllerKey, err := am.createControllerKey(controllerID)
	if err != nil {
		return false, fmt.Errorf("failed to create controller key for '%s': %w", controllerID, err)
	}
	entry, err := am.Ctx.GetStub().GetState(controllerKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking controller '%s': %w", controllerID, err)
	}
	return entry != nil && string(entry) == "true", nil
}

// --- Operational Gate (owner only) ---

// SetOperational flips the global switch. Deliberately exempt from the
// operational check so recovery is always possible.
func (am *AccessManager) SetOperational(operational bool) error {
	if err := am.RequireOwner(); err != nil {
		return err
	}
	cfg, err := am.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Operational == operational {
		amLogger.Infof("Operational switch already %v. No action needed.", operational)
		return nil
	}
	cfg.Operational = operational
	if err := am.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save operational switch: %w", err)
	}
	amLogger.Infof("Operational switch set to %v by owner '%s'.", operational, MustGetCallerFullID(am.Ctx))
	return nil
}

// IsOperational reports the state of the global switch.
func (am *AccessManager) IsOperational() (bool, error) {
	cfg, err := am.LoadConfig()
	if err != nil {
		return false, err
	}
	return cfg.Operational, nil
}
