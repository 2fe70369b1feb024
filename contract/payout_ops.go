package contract

import (
	"encoding/json"
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Payout Ledger Operations ---

func (s *FlightSuretyContract) createPayoutKey(ctx contractapi.TransactionContextInterface, insureeID string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(payoutObjectType, []string{insureeID})
}

// getPayoutBalance returns the balance record for insureeID, a zero record if
// none exists yet.
func (s *FlightSuretyContract) getPayoutBalance(ctx contractapi.TransactionContextInterface, insureeID string) (*model.PayoutBalance, error) {
	payoutKey, err := s.createPayoutKey(ctx, insureeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create payout key for '%s': %w", insureeID, err)
	}
	balanceBytes, err := ctx.GetStub().GetState(payoutKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving payout balance for '%s': %w", insureeID, err)
	}
	if balanceBytes == nil {
		return &model.PayoutBalance{ObjectType: payoutObjectType, InsureeID: insureeID, Owed: 0}, nil
	}
	var balance model.PayoutBalance
	if err := json.Unmarshal(balanceBytes, &balance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout balance for '%s': %w", insureeID, err)
	}
	return &balance, nil
}

func (s *FlightSuretyContract) putPayoutBalance(ctx contractapi.TransactionContextInterface, balance *model.PayoutBalance) error {
	payoutKey, err := s.createPayoutKey(ctx, balance.InsureeID)
	if err != nil {
		return fmt.Errorf("failed to create payout key for '%s': %w", balance.InsureeID, err)
	}
	balanceBytes, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("failed to marshal payout balance for '%s': %w", balance.InsureeID, err)
	}
	if err := ctx.GetStub().PutState(payoutKey, balanceBytes); err != nil {
		return fmt.Errorf("failed to save payout balance for '%s': %w", balance.InsureeID, err)
	}
	return nil
}

// creditInsuree increases the insuree's owed balance and returns the credit
// entry for the hosting operation's InsureeCredited event. Shared by
// settlement and overpayment refunds. It deliberately sets no event itself:
// the host keeps only one event per transaction, so the operation that
// triggered the credit owns the notification.
func (s *FlightSuretyContract) creditInsuree(ctx contractapi.TransactionContextInterface, insureeID string, amountUnits int64) (map[string]interface{}, error) {
	balance, err := s.getPayoutBalance(ctx, insureeID)
	if err != nil {
		return nil, err
	}
	newOwed, err := addAmounts(balance.Owed, amountUnits)
	if err != nil {
		return nil, fmt.Errorf("owed balance for '%s': %w", insureeID, err)
	}
	balance.Owed = newOwed
	if err := s.putPayoutBalance(ctx, balance); err != nil {
		return nil, err
	}
	logger.Infof("Insuree '%s' credited %s, owed total now %s", insureeID, formatAmount(amountUnits), formatAmount(newOwed))
	return map[string]interface{}{
		"insureeId":      insureeID,
		"creditedAmount": formatAmount(amountUnits),
		"newTotalOwed":   formatAmount(newOwed),
	}, nil
}

// CheckOwed returns the owed balance for insureeID as a decimal string.
func (s *FlightSuretyContract) CheckOwed(ctx contractapi.TransactionContextInterface, insureeID string) (string, error) {
	logger.Debugf("Chaincode Call: CheckOwed for '%s'", insureeID)
	if err := s.validateRequiredString(insureeID, "insureeID", maxStringInputLength); err != nil {
		return "", err
	}
	balance, err := s.getPayoutBalance(ctx, insureeID)
	if err != nil {
		return "", err
	}
	return formatAmount(balance.Owed), nil
}

// Withdraw pays out the insuree's full owed balance. The balance record is
// zeroed and persisted before the transfer instruction is issued; a caller
// re-entering during the transfer finds nothing left to drain. If issuing the
// instruction fails the whole transaction aborts, so the zeroed balance never
// commits without its payout.
func (s *FlightSuretyContract) Withdraw(ctx contractapi.TransactionContextInterface, insureeID string) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("Withdraw: %w", err)
	}
	if err := s.validateRequiredString(insureeID, "insureeID", maxStringInputLength); err != nil {
		return err
	}

	balance, err := s.getPayoutBalance(ctx, insureeID)
	if err != nil {
		return fmt.Errorf("Withdraw: %w", err)
	}
	owed := balance.Owed
	if owed == 0 {
		logger.Infof("Withdraw: insuree '%s' has no owed balance. Nothing transferred.", insureeID)
		return nil
	}

	balance.Owed = 0
	if err := s.putPayoutBalance(ctx, balance); err != nil {
		return fmt.Errorf("Withdraw: %w", err)
	}
	if _, err := s.bumpCounter(ctx, counterFundsWithdrawn, owed); err != nil {
		return fmt.Errorf("Withdraw: %w", err)
	}

	// The external transfer: an instruction to the off-ledger payment rail.
	if err := s.emitEvent(ctx, "PayoutIssued", map[string]interface{}{
		"insureeId": insureeID,
		"amount":    formatAmount(owed),
	}); err != nil {
		return fmt.Errorf("Withdraw: %w", err)
	}
	logger.Infof("Payout of %s issued to insuree '%s'", formatAmount(owed), insureeID)
	return nil
}

// DepositFunding records a funding contribution from contributorID into the
// ledger's global pool.
func (s *FlightSuretyContract) DepositFunding(ctx contractapi.TransactionContextInterface, contributorID, amount string) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("DepositFunding: %w", err)
	}
	if err := s.validateRequiredString(contributorID, "contributorID", maxStringInputLength); err != nil {
		return err
	}
	amountUnits, err := parseAmount("deposit", amount)
	if err != nil {
		return fmt.Errorf("DepositFunding: %w", err)
	}
	if amountUnits <= 0 {
		return fmt.Errorf("DepositFunding: deposit of %s: %w", amount, ErrZeroPayment)
	}

	received, err := s.bumpCounter(ctx, counterFundsReceived, amountUnits)
	if err != nil {
		return fmt.Errorf("DepositFunding: %w", err)
	}
	if err := s.emitEvent(ctx, "FundingReceived", map[string]interface{}{
		"contributorId": contributorID,
		"amount":        formatAmount(amountUnits),
		"fundsReceived": formatAmount(received),
	}); err != nil {
		return fmt.Errorf("DepositFunding: %w", err)
	}
	logger.Infof("Funding of %s deposited by '%s', funds received total now %s",
		formatAmount(amountUnits), contributorID, formatAmount(received))
	return nil
}

// Receive is the bare payment path with no explicit operation identifier. It
// performs the same accounting as DepositFunding, attributed to the sender.
func (s *FlightSuretyContract) Receive(ctx contractapi.TransactionContextInterface, amount string) error {
	senderFullID := MustGetCallerFullID(ctx)
	logger.Infof("Chaincode Call: Receive from '%s'", senderFullID)
	return s.DepositFunding(ctx, senderFullID, amount)
}

// GetSolvencyReport returns the global monetary counters and the current sum
// of owed balances so auditors can verify that the ledger never promises more
// than it received.
func (s *FlightSuretyContract) GetSolvencyReport(ctx contractapi.TransactionContextInterface) (*model.SolvencyReport, error) {
	logger.Debug("Chaincode Call: GetSolvencyReport")

	received, err := s.readCounter(ctx, counterFundsReceived)
	if err != nil {
		return nil, err
	}
	withdrawn, err := s.readCounter(ctx, counterFundsWithdrawn)
	if err != nil {
		return nil, err
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(payoutObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetSolvencyReport: failed to get payout iterator: %w", err)
	}
	defer resultsIterator.Close()

	var totalOwed int64
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetSolvencyReport: failed to get next payout record: %v. Skipping.", iterErr)
			continue
		}
		var balance model.PayoutBalance
		if err := json.Unmarshal(queryResponse.Value, &balance); err != nil {
			logger.Warningf("GetSolvencyReport: failed to unmarshal payout record '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		totalOwed, err = addAmounts(totalOwed, balance.Owed)
		if err != nil {
			return nil, fmt.Errorf("GetSolvencyReport: summing owed balances: %w", err)
		}
	}

	return &model.SolvencyReport{
		FundsReceived:  formatAmount(received),
		FundsWithdrawn: formatAmount(withdrawn),
		TotalOwed:      formatAmount(totalOwed),
		Solvent:        totalOwed <= received-withdrawn,
	}, nil
}
