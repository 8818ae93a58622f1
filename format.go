package kstate

import "fmt"

// String renders s for logging and debugging, in the shape
// "State <id> on '<name>' for <perms>".
func (s *State) String() string {
	if !s.IsSubscribed() {
		return "State <unsubscribed>"
	}
	return fmt.Sprintf("State %d on '%s' for %s", s.ID(), s.Name(), formatPermBits(s.Permissions()))
}

// String renders tx for logging and debugging.
func (tx *Transaction) String() string {
	if !tx.IsActive() {
		return "Transaction <inactive>"
	}
	return fmt.Sprintf("Transaction %d on '%s' for %s", tx.ID(), tx.Name(), formatPermBits(tx.Permissions()))
}
