package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/unicode/norm"

	"marketchain/core/types"
	"marketchain/crypto"
)

const defaultChainID = 1337

type cli struct {
	client  *rpcClient
	chainID uint64
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("market-cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	endpoint := fs.String("rpc", defaultRPCEndpoint(), "RPC endpoint (overrides RPC_URL)")
	chainID := fs.Uint64("chain-id", defaultChainID, "Chain id signed into transactions")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, usage())
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	c := &cli{client: newRPCClient(strings.TrimSpace(*endpoint)), chainID: *chainID, stdout: stdout, stderr: stderr}
	if err := c.dispatch(rest[0], rest[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage() string {
	return strings.Join([]string{
		"Usage: market-cli [--rpc <url>] [--chain-id <id>] <command> [args]",
		"",
		"Commands:",
		"  generate-key <key_file>",
		"  balance <address>",
		"  token-balance <owner> <mint>",
		"  transfer <key_file> <to> <amount>",
		"  create-mint <key_file> [decimals]",
		"  mint-to <key_file> <mint> <owner> <amount>",
		"  init-marketplace <key_file> <name> <fee_bps>",
		"  marketplace <name>",
		"  list <key_file> <marketplace> <asset> <price>",
		"  listing <marketplace> <asset>",
		"  purchase <key_file> <marketplace> <asset> <price>",
		"  cancel <key_file> <marketplace> <asset>",
		"  sales <marketplace> [limit]",
		"  fee-totals <marketplace>",
	}, "\n")
}

func (c *cli) dispatch(command string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d arguments\n%s", command, n, usage())
		}
		return nil
	}
	switch command {
	case "generate-key":
		if err := need(1); err != nil {
			return err
		}
		return c.generateKey(args[0])
	case "balance":
		if err := need(1); err != nil {
			return err
		}
		return c.query("market_getBalance", args[0])
	case "token-balance":
		if err := need(2); err != nil {
			return err
		}
		return c.query("market_getTokenBalance", args[0], args[1])
	case "marketplace":
		if err := need(1); err != nil {
			return err
		}
		return c.query("market_getMarketplace", marketName(args[0]))
	case "listing":
		if err := need(2); err != nil {
			return err
		}
		return c.query("market_getListing", marketName(args[0]), args[1])
	case "sales":
		if err := need(1); err != nil {
			return err
		}
		if len(args) > 1 {
			limit, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}
			return c.query("market_getSales", marketName(args[0]), limit)
		}
		return c.query("market_getSales", marketName(args[0]))
	case "fee-totals":
		if err := need(1); err != nil {
			return err
		}
		return c.query("market_getFeeTotals", marketName(args[0]))
	case "transfer":
		if err := need(3); err != nil {
			return err
		}
		to, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		return c.submit(args[0], types.TxTypeTransfer, types.TransferPayload{To: to, Amount: amount})
	case "create-mint":
		if err := need(1); err != nil {
			return err
		}
		var decimals uint64
		if len(args) > 1 {
			value, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil {
				return fmt.Errorf("invalid decimals %q", args[1])
			}
			decimals = value
		}
		return c.submit(args[0], types.TxTypeCreateMint, types.CreateMintPayload{Decimals: uint8(decimals)})
	case "mint-to":
		if err := need(4); err != nil {
			return err
		}
		mint, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		owner, err := parseAddress(args[2])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		return c.submit(args[0], types.TxTypeMintTo, types.MintToPayload{Mint: mint, Owner: owner, Amount: amount})
	case "init-marketplace":
		if err := need(3); err != nil {
			return err
		}
		fee, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid fee_bps %q", args[2])
		}
		return c.submit(args[0], types.TxTypeInitializeMarketplace, types.InitializeMarketplacePayload{Name: marketName(args[1]), FeeBps: uint16(fee)})
	case "list", "purchase":
		if err := need(4); err != nil {
			return err
		}
		asset, err := parseAddress(args[2])
		if err != nil {
			return err
		}
		price, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		if command == "list" {
			return c.submit(args[0], types.TxTypeList, types.ListPayload{Marketplace: marketName(args[1]), Asset: asset, Price: price})
		}
		return c.submit(args[0], types.TxTypePurchase, types.PurchasePayload{Marketplace: marketName(args[1]), Asset: asset, Price: price})
	case "cancel":
		if err := need(3); err != nil {
			return err
		}
		asset, err := parseAddress(args[2])
		if err != nil {
			return err
		}
		return c.submit(args[0], types.TxTypeCancel, types.CancelPayload{Marketplace: marketName(args[1]), Asset: asset})
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage())
	}
}

// marketName puts a marketplace name typed on the command line into NFC form.
// The name is hashed into the marketplace address, so composed and decomposed
// spellings of the same text must resolve to one marketplace.
func marketName(raw string) string {
	return norm.NFC.String(raw)
}

func parseAddress(value string) (common.Address, error) {
	raw, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid address %q: %w", value, err)
	}
	return common.Address(raw), nil
}

func parseAmount(value string) (uint64, error) {
	amount, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func (c *cli) generateKey(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		return fmt.Errorf("save key to %s: %w", path, err)
	}
	fmt.Fprintf(c.stdout, "Generated new key and saved to %s\n", path)
	fmt.Fprintf(c.stdout, "Address: %s\n", key.PubKey().Address().String())
	return nil
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("private key file %s not found. run market-cli generate-key first", path)
		}
		return nil, fmt.Errorf("read private key file %s: %w", path, err)
	}
	if len(keyBytes) == 0 {
		return nil, fmt.Errorf("private key file %s is empty", path)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key in %s: %w", path, err)
	}
	return key, nil
}

// submit signs payload with the key at keyFile, using the sender's current
// nonce, and sends it to the node.
func (c *cli) submit(keyFile string, txType types.TxType, payload interface{}) error {
	key, err := loadPrivateKey(keyFile)
	if err != nil {
		return err
	}
	result, err := c.client.call("market_getBalance", key.PubKey().Address().String())
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	var account struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(result, &account); err != nil {
		return fmt.Errorf("decode account: %w", err)
	}
	tx, err := types.NewTransaction(c.chainID, txType, account.Nonce, payload)
	if err != nil {
		return err
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	result, err = c.client.call("market_sendTransaction", tx)
	if err != nil {
		return err
	}
	return c.print(result)
}

func (c *cli) query(method string, params ...interface{}) error {
	result, err := c.client.call(method, params...)
	if err != nil {
		return err
	}
	return c.print(result)
}

func (c *cli) print(result json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		_, err = c.stdout.Write(result)
		return err
	}
	out.WriteByte('\n')
	_, err := c.stdout.Write(out.Bytes())
	return err
}
