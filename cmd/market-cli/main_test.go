package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketchain/core"
	"marketchain/core/genesis"
	"marketchain/crypto"
	"marketchain/rpc"
	"marketchain/storage"
	"marketchain/storage/trie"
)

const testChainID = 7

func startNode(t *testing.T, funded [20]byte) *httptest.Server {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	sp := core.NewStateProcessor(tr, testChainID)
	spec, err := genesis.ParseGenesisSpec([]byte(fmt.Sprintf(`{"chainId": %d, "alloc": {"0x%s": "1000"}}`, testChainID, hex.EncodeToString(funded[:]))))
	if err != nil {
		t.Fatalf("parse genesis: %v", err)
	}
	if _, err := sp.ApplyGenesis(spec); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	srv, err := rpc.NewServer(sp, nil, rpc.ServerConfig{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func writeKey(t *testing.T) (string, *crypto.PrivateKey) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wallet.key")
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, key
}

func TestTransferAndBalance(t *testing.T) {
	keyFile, key := writeKey(t)
	node := startNode(t, key.PubKey().Address().Raw())
	recipient, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate recipient: %v", err)
	}
	to := recipient.PubKey().Address().String()
	flags := []string{"--rpc", node.URL, "--chain-id", fmt.Sprint(testChainID)}

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		if code := run(append(flags, "transfer", keyFile, to, "25"), &stdout, &stderr); code != 0 {
			t.Fatalf("transfer %d exited %d: %s", i, code, stderr.String())
		}
	}

	var stdout, stderr bytes.Buffer
	if code := run(append(flags, "balance", to), &stdout, &stderr); code != 0 {
		t.Fatalf("balance exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"balance": "50"`) {
		t.Fatalf("unexpected balance output: %s", stdout.String())
	}
}

func TestMarketplaceNamesAreNormalized(t *testing.T) {
	keyFile, key := writeKey(t)
	node := startNode(t, key.PubKey().Address().Raw())
	flags := []string{"--rpc", node.URL, "--chain-id", fmt.Sprint(testChainID)}

	var stdout, stderr bytes.Buffer
	if code := run(append(flags, "init-marketplace", keyFile, "cafe\u0301", "250"), &stdout, &stderr); code != 0 {
		t.Fatalf("init-marketplace exited %d: %s", code, stderr.String())
	}
	stdout.Reset()
	if code := run(append(flags, "marketplace", "caf\u00e9"), &stdout, &stderr); code != 0 {
		t.Fatalf("marketplace exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"feeBps": 250`) {
		t.Fatalf("unexpected marketplace output: %s", stdout.String())
	}
}

func TestWrongChainIDIsRejected(t *testing.T) {
	keyFile, key := writeKey(t)
	node := startNode(t, key.PubKey().Address().Raw())
	var stdout, stderr bytes.Buffer
	code := run([]string{"--rpc", node.URL, "--chain-id", "99", "transfer", keyFile, key.PubKey().Address().String(), "1"}, &stdout, &stderr)
	if code == 0 {
		t.Fatalf("expected failure, got output %s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "transaction rejected") {
		t.Fatalf("unexpected error output: %s", stderr.String())
	}
}

func TestUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	stderr.Reset()
	if code := run([]string{"list", "wallet.key"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "expected 4 arguments") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestGenerateKeyRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.key")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"generate-key", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("generate-key exited %d: %s", code, stderr.String())
	}
	if _, err := loadPrivateKey(path); err != nil {
		t.Fatalf("load generated key: %v", err)
	}
	if code := run([]string{"generate-key", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected overwrite refusal")
	}
}
