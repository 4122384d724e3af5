package ethchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEscrow(t *testing.T) *Escrow {
	t.Helper()
	e, err := NewEscrow(nil, common.HexToAddress("0x1234567890123456789012345678901234567890"), 11155111)
	require.NoError(t, err)
	return e
}

func TestEscrowABI(t *testing.T) {
	e := testEscrow(t)

	t.Run("event signatures", func(t *testing.T) {
		created := e.abi.Events["GameCreated"]
		require.NotNil(t, created.ID)
		assert.Equal(t,
			crypto.Keccak256Hash([]byte("GameCreated(string,bytes32,address,uint256)")),
			created.ID)
		assert.Equal(t,
			crypto.Keccak256Hash([]byte("GameJoined(string,bytes32,address,uint256)")),
			e.abi.Events["GameJoined"].ID)
		assert.Equal(t,
			crypto.Keccak256Hash([]byte("GameSettled(bytes32,address,uint256)")),
			e.abi.Events["GameSettled"].ID)
	})

	t.Run("settleGame packing", func(t *testing.T) {
		winner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
		calldata, err := e.abi.Pack("settleGame", "g1", winner)
		require.NoError(t, err)
		assert.Equal(t, e.abi.Methods["settleGame"].ID, calldata[:4])

		var args struct {
			GameId string
			Winner common.Address
		}
		vals, err := e.abi.Methods["settleGame"].Inputs.Unpack(calldata[4:])
		require.NoError(t, err)
		require.NoError(t, e.abi.Methods["settleGame"].Inputs.Copy(&args, vals))
		assert.Equal(t, "g1", args.GameId)
		assert.Equal(t, winner, args.Winner)
	})

	t.Run("getGame packing", func(t *testing.T) {
		calldata, err := e.abi.Pack("getGame", "g1")
		require.NoError(t, err)
		assert.Equal(t, e.abi.Methods["getGame"].ID, calldata[:4])
	})
}

// packEventData packs the non-indexed inputs of an event the way the
// contract would emit them.
func packEventData(t *testing.T, e *Escrow, event string, args ...interface{}) []byte {
	t.Helper()
	var nonIndexed abi.Arguments
	for _, in := range e.abi.Events[event].Inputs {
		if !in.Indexed {
			nonIndexed = append(nonIndexed, in)
		}
	}
	data, err := nonIndexed.Pack(args...)
	require.NoError(t, err)
	return data
}

func TestParseCreated(t *testing.T) {
	e := testEscrow(t)
	creator := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	wager := big.NewInt(1e16)

	lg := types.Log{
		Address: e.address,
		Topics: []common.Hash{
			e.abi.Events["GameCreated"].ID,
			crypto.Keccak256Hash([]byte("g1")),
			common.BytesToHash(creator.Bytes()),
		},
		Data:        packEventData(t, e, "GameCreated", "g1", wager),
		BlockNumber: 123,
		TxHash:      common.HexToHash("0x01"),
	}

	evt, err := e.parseCreated(lg)
	require.NoError(t, err)
	assert.Equal(t, "g1", evt.GameID)
	assert.Equal(t, creator, evt.Creator)
	assert.Equal(t, wager, evt.Wager)
	assert.Equal(t, uint64(123), evt.Block)

	t.Run("missing topics rejected", func(t *testing.T) {
		short := lg
		short.Topics = short.Topics[:1]
		_, err := e.parseCreated(short)
		assert.Error(t, err)
	})
}

func TestParseJoined(t *testing.T) {
	e := testEscrow(t)
	joiner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	wager := big.NewInt(1e16)

	lg := types.Log{
		Address: e.address,
		Topics: []common.Hash{
			e.abi.Events["GameJoined"].ID,
			crypto.Keccak256Hash([]byte("g1")),
			common.BytesToHash(joiner.Bytes()),
		},
		Data:        packEventData(t, e, "GameJoined", "g1", wager),
		BlockNumber: 124,
	}

	evt, err := e.parseJoined(lg)
	require.NoError(t, err)
	assert.Equal(t, "g1", evt.GameID)
	assert.Equal(t, joiner, evt.Joiner)
	assert.Equal(t, uint64(124), evt.Block)
}

func TestGetGameUnpack(t *testing.T) {
	e := testEscrow(t)

	// Round-trip the tuple through the output encoder to confirm the
	// ContractGame layout matches the ABI.
	game := ContractGame{
		GameId:      "g1",
		Creator:     common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Opponent:    common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		WagerAmount: big.NewInt(1e16),
		IsActive:    true,
		Winner:      common.Address{},
		CreatedAt:   big.NewInt(1700000000),
	}
	encoded, err := e.abi.Methods["getGame"].Outputs.Pack(game)
	require.NoError(t, err)

	var out struct {
		Game ContractGame
	}
	require.NoError(t, e.abi.UnpackIntoInterface(&out, "getGame", encoded))
	assert.Equal(t, game.GameId, out.Game.GameId)
	assert.Equal(t, game.Opponent, out.Game.Opponent)
	assert.Equal(t, 0, game.WagerAmount.Cmp(out.Game.WagerAmount))
	assert.True(t, out.Game.IsActive)
}

func TestClientUnsupportedChain(t *testing.T) {
	c := NewClient(map[int64]string{11155111: "http://localhost:8545"}, nil, nil)
	_, err := c.dial(999)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
	assert.ElementsMatch(t, []int64{11155111}, c.SupportedChains())
}
