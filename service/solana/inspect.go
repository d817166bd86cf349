package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction kinds reported by Summarize.
const (
	KindCreateTokenAccount = "create-token-account"
	KindSOLTransfer        = "sol-transfer"
	KindTokenTransfer      = "token-transfer"
	KindUnknown            = "unknown"
)

// Instruction type tags in program data.
const (
	systemTransferInstruction       = uint32(2)
	tokenTransferInstruction        = uint8(3)
	tokenTransferCheckedInstruction = uint8(12)
	ataCreateInstruction            = uint8(0)
	ataCreateIdempotentInstruction  = uint8(1)
)

// Signer is one required signer and whether its slot carries a signature.
type Signer struct {
	Address string `json:"address"`
	Signed  bool   `json:"signed"`
}

// InstructionSummary is a decoded view of one instruction.
type InstructionSummary struct {
	Kind     string   `json:"kind"`
	Program  string   `json:"program"`
	Amount   uint64   `json:"amount,omitempty"`
	Accounts []string `json:"accounts"`
}

// Summary describes a wire transaction without needing the ledger.
type Summary struct {
	FeePayer        string               `json:"feePayer"`
	RecentBlockhash string               `json:"recentBlockhash"`
	Signers         []Signer             `json:"signers"`
	Instructions    []InstructionSummary `json:"instructions"`
}

// Inspect decodes a base64 transaction and summarizes it.
func Inspect(encoded string) (*Summary, error) {
	tx, err := DecodeTransaction(encoded)
	if err != nil {
		return nil, err
	}
	return Summarize(tx)
}

// Summarize decodes the instructions of tx against the programs a purchase uses.
func Summarize(tx *solana.Transaction) (*Summary, error) {
	keys := tx.Message.AccountKeys
	if len(keys) == 0 {
		return nil, fmt.Errorf("transaction has no account keys")
	}

	s := &Summary{
		FeePayer:        keys[0].String(),
		RecentBlockhash: tx.Message.RecentBlockhash.String(),
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(keys); i++ {
		signed := i < len(tx.Signatures) && tx.Signatures[i] != (solana.Signature{})
		s.Signers = append(s.Signers, Signer{Address: keys[i].String(), Signed: signed})
	}

	for i, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("instruction %d: program index %d out of range", i, inst.ProgramIDIndex)
		}
		program := keys[inst.ProgramIDIndex]

		accounts := make([]string, 0, len(inst.Accounts))
		for _, idx := range inst.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("instruction %d: account index %d out of range", i, idx)
			}
			accounts = append(accounts, keys[idx].String())
		}

		summary := InstructionSummary{
			Kind:     KindUnknown,
			Program:  program.String(),
			Accounts: accounts,
		}

		switch {
		case program.Equals(solana.SystemProgramID):
			if amount, ok := parseSystemTransfer(inst.Data); ok {
				summary.Kind = KindSOLTransfer
				summary.Amount = amount
			}
		case program.Equals(solana.TokenProgramID):
			if amount, ok := parseTokenTransfer(inst.Data); ok {
				summary.Kind = KindTokenTransfer
				summary.Amount = amount
			}
		case program.Equals(solana.SPLAssociatedTokenAccountProgramID):
			if len(inst.Data) == 0 || inst.Data[0] == ataCreateInstruction || inst.Data[0] == ataCreateIdempotentInstruction {
				summary.Kind = KindCreateTokenAccount
			}
		}

		s.Instructions = append(s.Instructions, summary)
	}

	return s, nil
}

// parseSystemTransfer reads a System Program Transfer:
// [0..4] instruction type (u32 = 2), [4..12] lamports (u64).
func parseSystemTransfer(data []byte) (uint64, bool) {
	if len(data) < 12 {
		return 0, false
	}
	if binary.LittleEndian.Uint32(data[0:4]) != systemTransferInstruction {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[4:12]), true
}

// parseTokenTransfer reads Transfer (3) and TransferChecked (12):
// [0] instruction type, [1..9] amount (u64).
func parseTokenTransfer(data []byte) (uint64, bool) {
	if len(data) < 9 {
		return 0, false
	}
	switch data[0] {
	case tokenTransferInstruction:
		return binary.LittleEndian.Uint64(data[1:9]), true
	case tokenTransferCheckedInstruction:
		if len(data) < 10 {
			return 0, false
		}
		return binary.LittleEndian.Uint64(data[1:9]), true
	}
	return 0, false
}
