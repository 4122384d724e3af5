package ethchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// escrowABIJSON is the observable interface of the deployed escrow
// contract: the two lifecycle events the poller consumes, the settlement
// event, the game read-back, and the settler-only payout entrypoint.
const escrowABIJSON = `[
  {"type":"event","name":"GameCreated","inputs":[
    {"name":"gameId","type":"string","indexed":false},
    {"name":"gameIdHash","type":"bytes32","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"wagerAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"GameJoined","inputs":[
    {"name":"gameId","type":"string","indexed":false},
    {"name":"gameIdHash","type":"bytes32","indexed":true},
    {"name":"joiner","type":"address","indexed":true},
    {"name":"wagerAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"GameSettled","inputs":[
    {"name":"gameIdHash","type":"bytes32","indexed":true},
    {"name":"winner","type":"address","indexed":true},
    {"name":"totalWinnings","type":"uint256","indexed":false}]},
  {"type":"function","name":"getGame","stateMutability":"view","inputs":[
    {"name":"gameId","type":"string"}],
   "outputs":[{"name":"game","type":"tuple","components":[
    {"name":"gameId","type":"string"},
    {"name":"creator","type":"address"},
    {"name":"opponent","type":"address"},
    {"name":"wagerAmount","type":"uint256"},
    {"name":"isActive","type":"bool"},
    {"name":"isSettled","type":"bool"},
    {"name":"winner","type":"address"},
    {"name":"createdAt","type":"uint256"}]}]},
  {"type":"function","name":"settleGame","stateMutability":"nonpayable","inputs":[
    {"name":"gameId","type":"string"},
    {"name":"winner","type":"address"}],
   "outputs":[]}
]`

// GameCreatedEvent is a decoded GameCreated log.
type GameCreatedEvent struct {
	GameID  string
	Creator common.Address
	Wager   *big.Int
	TxHash  common.Hash
	Block   uint64
}

// GameJoinedEvent is a decoded GameJoined log.
type GameJoinedEvent struct {
	GameID string
	Joiner common.Address
	Wager  *big.Int
	TxHash common.Hash
	Block  uint64
}

// EscrowEvents groups the events observed in one block range.
type EscrowEvents struct {
	Created []GameCreatedEvent
	Joined  []GameJoinedEvent
}

// ContractGame mirrors the escrow contract's Game struct as returned by
// getGame.
type ContractGame struct {
	GameId      string
	Creator     common.Address
	Opponent    common.Address
	WagerAmount *big.Int
	IsActive    bool
	IsSettled   bool
	Winner      common.Address
	CreatedAt   *big.Int
}

// Escrow binds one deployed escrow contract on one chain.
type Escrow struct {
	client  *Client
	address common.Address
	chainID int64
	abi     abi.ABI
}

// NewEscrow parses the escrow ABI and binds it to the deployed address.
func NewEscrow(client *Client, address common.Address, chainID int64) (*Escrow, error) {
	parsed, err := abi.JSON(strings.NewReader(escrowABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	return &Escrow{client: client, address: address, chainID: chainID, abi: parsed}, nil
}

// Address returns the deployed contract address.
func (e *Escrow) Address() common.Address {
	return e.address
}

// ChainID returns the chain the contract is deployed on.
func (e *Escrow) ChainID() int64 {
	return e.chainID
}

// CurrentBlock returns the contract chain's latest block number.
func (e *Escrow) CurrentBlock(ctx context.Context) (uint64, error) {
	return e.client.CurrentBlock(ctx, e.chainID)
}

// FilterEvents fetches GameCreated and GameJoined logs in [fromBlock,
// toBlock], decoded and ordered by block position within each kind.
func (e *Escrow) FilterEvents(ctx context.Context, fromBlock, toBlock uint64) (*EscrowEvents, error) {
	createdID := e.abi.Events["GameCreated"].ID
	joinedID := e.abi.Events["GameJoined"].ID

	logs, err := e.client.FilterLogs(ctx, e.chainID, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{e.address},
		Topics:    [][]common.Hash{{createdID, joinedID}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter escrow logs: %w", err)
	}

	events := &EscrowEvents{}
	for _, lg := range logs {
		if lg.Removed || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case createdID:
			evt, err := e.parseCreated(lg)
			if err != nil {
				return nil, err
			}
			events.Created = append(events.Created, evt)
		case joinedID:
			evt, err := e.parseJoined(lg)
			if err != nil {
				return nil, err
			}
			events.Joined = append(events.Joined, evt)
		}
	}
	return events, nil
}

func (e *Escrow) parseCreated(lg types.Log) (GameCreatedEvent, error) {
	if len(lg.Topics) < 3 {
		return GameCreatedEvent{}, fmt.Errorf("GameCreated log %s: missing topics", lg.TxHash.Hex())
	}
	var data struct {
		GameId      string
		WagerAmount *big.Int
	}
	if err := e.abi.UnpackIntoInterface(&data, "GameCreated", lg.Data); err != nil {
		return GameCreatedEvent{}, fmt.Errorf("unpack GameCreated: %w", err)
	}
	return GameCreatedEvent{
		GameID:  data.GameId,
		Creator: common.BytesToAddress(lg.Topics[2].Bytes()),
		Wager:   data.WagerAmount,
		TxHash:  lg.TxHash,
		Block:   lg.BlockNumber,
	}, nil
}

func (e *Escrow) parseJoined(lg types.Log) (GameJoinedEvent, error) {
	if len(lg.Topics) < 3 {
		return GameJoinedEvent{}, fmt.Errorf("GameJoined log %s: missing topics", lg.TxHash.Hex())
	}
	var data struct {
		GameId      string
		WagerAmount *big.Int
	}
	if err := e.abi.UnpackIntoInterface(&data, "GameJoined", lg.Data); err != nil {
		return GameJoinedEvent{}, fmt.Errorf("unpack GameJoined: %w", err)
	}
	return GameJoinedEvent{
		GameID: data.GameId,
		Joiner: common.BytesToAddress(lg.Topics[2].Bytes()),
		Wager:  data.WagerAmount,
		TxHash: lg.TxHash,
		Block:  lg.BlockNumber,
	}, nil
}

// GetGame reads the contract's record for gameId. The event stream does not
// carry the optional named opponent, so the poller reads it back here.
func (e *Escrow) GetGame(ctx context.Context, gameID string) (*ContractGame, error) {
	calldata, err := e.abi.Pack("getGame", gameID)
	if err != nil {
		return nil, fmt.Errorf("pack getGame: %w", err)
	}
	ret, err := e.client.CallView(ctx, e.chainID, e.address, calldata)
	if err != nil {
		return nil, fmt.Errorf("call getGame: %w", err)
	}
	var out struct {
		Game ContractGame
	}
	if err := e.abi.UnpackIntoInterface(&out, "getGame", ret); err != nil {
		return nil, fmt.Errorf("unpack getGame: %w", err)
	}
	return &out.Game, nil
}

// SettleGame pays the pot out to winner. Only the configured settler key is
// accepted by the contract.
func (e *Escrow) SettleGame(ctx context.Context, gameID string, winner common.Address) (*types.Receipt, error) {
	calldata, err := e.abi.Pack("settleGame", gameID, winner)
	if err != nil {
		return nil, fmt.Errorf("pack settleGame: %w", err)
	}
	receipt, err := e.client.SendContractTx(ctx, e.chainID, e.address, calldata)
	if err != nil {
		return nil, fmt.Errorf("settleGame %s: %w", gameID, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("settleGame %s: tx %s reverted", gameID, receipt.TxHash.Hex())
	}
	return receipt, nil
}
