package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/brojonat/presale/service/phase"
)

// MaxHistory is how many transactions are kept per account.
const MaxHistory = 20

// TransactionStatus is the outcome of a recorded purchase.
type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "success"
	TransactionPending TransactionStatus = "pending"
	TransactionFailed  TransactionStatus = "failed"
)

// TransactionRecord is one purchase in the local history.
type TransactionRecord struct {
	Signature   string            `yaml:"signature" json:"signature"`
	PurchaseID  string            `yaml:"purchase_id,omitempty" json:"purchaseId,omitempty"`
	SolAmount   decimal.Decimal   `yaml:"sol_amount" json:"solAmount"`
	TokenAmount decimal.Decimal   `yaml:"token_amount" json:"tokenAmount"`
	USDValue    decimal.Decimal   `yaml:"usd_value" json:"usdValue"`
	Timestamp   time.Time         `yaml:"timestamp" json:"timestamp"`
	Status      TransactionStatus `yaml:"status" json:"status"`
}

type stateFile struct {
	Wallet   string                         `yaml:"wallet,omitempty"`
	Account  string                         `yaml:"account,omitempty"`
	Settings map[string]string              `yaml:"settings,omitempty"`
	History  map[string][]TransactionRecord `yaml:"history,omitempty"`
}

// State is the CLI's persisted local state: the connected wallet, per-account
// purchase history and presale thresholds. Every mutation is written through
// to the file.
type State struct {
	path string

	mu   sync.Mutex
	data stateFile
}

// DefaultStatePath returns ~/.config/presale/state.yaml.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "presale", "state.yaml"), nil
}

// LoadState reads the state at path. A missing file is an empty state.
func LoadState(path string) (*State, error) {
	s := &State{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return s, nil
}

// Path returns the file backing the state.
func (s *State) Path() string {
	return s.path
}

// Connected returns the connected wallet name and account, empty if none.
func (s *State) Connected() (walletName, account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Wallet, s.data.Account
}

// SetConnected records walletName and account as connected.
func (s *State) SetConnected(walletName, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Wallet = walletName
	s.data.Account = account
	return s.save()
}

// ClearConnected forgets the connected wallet. History is kept.
func (s *State) ClearConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Wallet = ""
	s.data.Account = ""
	return s.save()
}

// AddTransaction prepends rec to account's history, dropping the oldest
// entries beyond MaxHistory.
func (s *State) AddTransaction(account string, rec TransactionRecord) error {
	if account == "" {
		return errors.New("account is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.History == nil {
		s.data.History = make(map[string][]TransactionRecord)
	}
	history := append([]TransactionRecord{rec}, s.data.History[account]...)
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	s.data.History[account] = history
	return s.save()
}

// UpdateTransactionStatus sets the status of account's record with signature.
// It reports whether a record was found.
func (s *State) UpdateTransactionStatus(account, signature string, status TransactionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.data.History[account]
	for i := range history {
		if history[i].Signature != signature {
			continue
		}
		if history[i].Status == status {
			return true, nil
		}
		history[i].Status = status
		return true, s.save()
	}
	return false, nil
}

// History returns a copy of account's history, newest first.
func (s *State) History(account string) []TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.data.History[account]
	out := make([]TransactionRecord, len(history))
	copy(out, history)
	return out
}

// ClearHistory removes account's history.
func (s *State) ClearHistory(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.History, account)
	return s.save()
}

// GetSetting returns the stored value for key, or phase.ErrSettingNotFound.
func (s *State) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.data.Settings[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", phase.ErrSettingNotFound, key)
	}
	return value, nil
}

// InitSetting stores value for key unless one is already stored, and returns
// the stored value.
func (s *State) InitSetting(ctx context.Context, key, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data.Settings[key]; ok {
		return existing, nil
	}
	if s.data.Settings == nil {
		s.data.Settings = make(map[string]string)
	}
	s.data.Settings[key] = value
	if err := s.save(); err != nil {
		delete(s.data.Settings, key)
		return "", err
	}
	return value, nil
}

// save writes the state atomically. Callers hold mu.
func (s *State) save() error {
	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
