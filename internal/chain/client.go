// Package chain is the engine's Solana surface: Anchor-compatible
// instruction encoding, PDA derivation, and a thin RPC client for submitting
// verdicts, settlements and refunds and for answering balance and activity
// queries.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/commitmentparties/engine/internal/model"
)

// NativeMint is the wrapped-SOL mint. Goals quoting it are checked against
// the wallet's lamport balance instead of a token account.
const NativeMint = "So11111111111111111111111111111111111111112"

// ErrPoolNotActive means the program rejected the instruction because the
// on-chain pool already left the active state. Verification submissions
// treat it as "someone else settled first" and skip silently.
var ErrPoolNotActive = errors.New("on-chain pool is not active")

// poolNotActiveCode is the program's custom error for the stale-pool case.
const poolNotActiveCode = 6000

type Client struct {
	rpc       *rpc.Client
	programID solana.PublicKey
	wallet    solana.PrivateKey
	log       *slog.Logger
}

// NewClient builds a client from a base58 private key or, failing that, a
// solana-keygen JSON file. Exactly one of the two must be provided.
func NewClient(rpcURL, programID, privateKey, keypairPath string, log *slog.Logger) (*Client, error) {
	prog, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("chain: program id: %w", err)
	}

	var wallet solana.PrivateKey
	switch {
	case privateKey != "":
		wallet, err = solana.PrivateKeyFromBase58(privateKey)
		if err != nil {
			return nil, fmt.Errorf("chain: agent private key: %w", err)
		}
	case keypairPath != "":
		wallet, err = solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
		if err != nil {
			return nil, fmt.Errorf("chain: agent keypair file: %w", err)
		}
	default:
		return nil, errors.New("chain: no agent key configured")
	}

	return &Client{
		rpc:       rpc.New(rpcURL),
		programID: prog,
		wallet:    wallet,
		log:       log,
	}, nil
}

// AgentWallet is the public key the engine signs with.
func (c *Client) AgentWallet() solana.PublicKey {
	return c.wallet.PublicKey()
}

// SubmitVerify records a participant's daily verdict on-chain. The
// transaction is simulated first: if the program reports the pool is no
// longer active the submission is skipped with ErrPoolNotActive rather than
// burning a failed transaction.
func (c *Client) SubmitVerify(ctx context.Context, poolID int64, wallet string, day int, passed bool) (string, error) {
	participant, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return "", fmt.Errorf("chain: participant wallet: %w", err)
	}
	poolPDA, err := PoolAddress(c.programID, poolID)
	if err != nil {
		return "", fmt.Errorf("chain: pool pda: %w", err)
	}
	participantPDA, err := ParticipantAddress(c.programID, poolPDA, participant)
	if err != nil {
		return "", fmt.Errorf("chain: participant pda: %w", err)
	}

	ix := solana.NewInstruction(c.programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(poolPDA, true, false),
		solana.NewAccountMeta(participantPDA, true, false),
		solana.NewAccountMeta(c.wallet.PublicKey(), false, true),
	}, EncodeVerifyParticipant(day, passed))

	return c.submit(ctx, []solana.Instruction{ix}, true)
}

// SubmitDistribute executes a pool's settlement in a single instruction.
// Winner wallets ride along as remaining accounts so the program can credit
// each share from the vault directly.
func (c *Client) SubmitDistribute(ctx context.Context, pool *model.Pool, winners []string) (string, error) {
	poolPDA, err := PoolAddress(c.programID, pool.PoolID)
	if err != nil {
		return "", fmt.Errorf("chain: pool pda: %w", err)
	}
	vaultPDA, err := VaultAddress(c.programID, poolPDA)
	if err != nil {
		return "", fmt.Errorf("chain: vault pda: %w", err)
	}
	charity, err := solana.PublicKeyFromBase58(pool.CharityAddress)
	if err != nil {
		return "", fmt.Errorf("chain: charity address: %w", err)
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(poolPDA, true, false),
		solana.NewAccountMeta(vaultPDA, true, false),
		solana.NewAccountMeta(c.wallet.PublicKey(), true, true),
		solana.NewAccountMeta(charity, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	for _, w := range winners {
		pk, err := solana.PublicKeyFromBase58(w)
		if err != nil {
			return "", fmt.Errorf("chain: winner wallet %s: %w", w, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, true, false))
	}

	ix := solana.NewInstruction(c.programID, metas, EncodeDistributeRewards())
	return c.submit(ctx, []solana.Instruction{ix}, true)
}

// Refund sends lamports from the agent wallet back to a participant. Used
// when a pool expires without reaching quorum.
func (c *Client) Refund(ctx context.Context, recipient string, lamports uint64) (string, error) {
	to, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return "", fmt.Errorf("chain: refund recipient: %w", err)
	}

	ix := system.NewTransferInstruction(lamports, c.wallet.PublicKey(), to).Build()
	return c.submit(ctx, []solana.Instruction{ix}, false)
}

func (c *Client) submit(ctx context.Context, ixs []solana.Instruction, simulate bool) (string, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("chain: latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(ixs, recent.Value.Blockhash, solana.TransactionPayer(c.wallet.PublicKey()))
	if err != nil {
		return "", fmt.Errorf("chain: build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.wallet.PublicKey()) {
			return &c.wallet
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chain: sign transaction: %w", err)
	}

	if simulate {
		sim, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return "", fmt.Errorf("chain: simulate: %w", err)
		}
		if sim.Value.Err != nil {
			if isCustomError(sim.Value.Err, poolNotActiveCode) {
				return "", ErrPoolNotActive
			}
			c.log.Warn("transaction simulation failed", "err", sim.Value.Err, "logs", sim.Value.Logs)
			return "", fmt.Errorf("chain: simulation rejected: %v", sim.Value.Err)
		}
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("chain: send transaction: %w", err)
	}

	return sig.String(), nil
}

// isCustomError reports whether an RPC transaction error carries the given
// Anchor custom error code. The error arrives as loosely-typed JSON, so it
// is matched on its serialized form.
func isCustomError(txErr any, code int) bool {
	b, err := json.Marshal(txErr)
	if err != nil {
		return false
	}
	return strings.Contains(string(b), `"Custom":`+strconv.Itoa(code))
}

// TokenBalance returns the wallet's balance of the given mint in base units.
// The native mint reads the lamport balance; anything else reads the
// associated token account, with a missing account counting as zero.
func (c *Client) TokenBalance(ctx context.Context, wallet, mint string) (uint64, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return 0, fmt.Errorf("chain: wallet: %w", err)
	}

	if mint == NativeMint {
		res, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, fmt.Errorf("chain: get balance: %w", err)
		}
		return res.Value, nil
	}

	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("chain: mint: %w", err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return 0, fmt.Errorf("chain: associated token address: %w", err)
	}

	res, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") {
			return 0, nil
		}
		return 0, fmt.Errorf("chain: token balance: %w", err)
	}

	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chain: parse token amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

// signaturePageLimit caps one GetSignaturesForAddress page. A wallet doing
// more than this many transactions inside a single challenge day trivially
// clears any trade goal, so deeper pagination is not needed.
const signaturePageLimit = 1000

// TransactionCount counts the wallet's successful transactions whose block
// time falls inside [from, to).
func (c *Client) TransactionCount(ctx context.Context, wallet string, from, to time.Time) (int, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return 0, fmt.Errorf("chain: wallet: %w", err)
	}

	limit := signaturePageLimit
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, owner, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return 0, fmt.Errorf("chain: signatures for address: %w", err)
	}

	count := 0
	for _, sig := range sigs {
		if sig.Err != nil || sig.BlockTime == nil {
			continue
		}
		t := sig.BlockTime.Time()
		if !t.Before(from) && t.Before(to) {
			count++
		}
	}
	return count, nil
}
