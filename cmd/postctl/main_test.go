package main

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/blackmichael/onchain-posts/internal/chain"
	"github.com/blackmichael/onchain-posts/internal/contract"
	"github.com/blackmichael/onchain-posts/internal/domain"
	"github.com/blackmichael/onchain-posts/internal/journal"
)

const (
	testContract = "0x564B404109F3d358f4B593020a438F27055F3367"
	alice        = "0x1111111111111111111111111111111111111111"
	bob          = "0x2222222222222222222222222222222222222222"
)

type chainPost struct {
	ID        *big.Int       `abi:"id"`
	Author    common.Address `abi:"author"`
	Content   string         `abi:"content"`
	Timestamp *big.Int       `abi:"timestamp"`
	Likes     *big.Int       `abi:"likes"`
}

type txArgs struct {
	From *common.Address `json:"from"`
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

// ethService answers the eth_* calls postctl makes, in the shape a wallet
// provider would.
type ethService struct {
	posts  hexutil.Bytes
	reject bool

	mu  sync.Mutex
	txs []txArgs
}

func (s *ethService) RequestAccounts(ctx context.Context) ([]string, error) {
	return []string{alice}, nil
}

func (s *ethService) Call(ctx context.Context, args txArgs, block string) (hexutil.Bytes, error) {
	return s.posts, nil
}

func (s *ethService) SendTransaction(ctx context.Context, args txArgs) (common.Hash, error) {
	if s.reject {
		return common.Hash{}, &rpcError{code: chain.UserRejectedCode, msg: "User rejected the request."}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, args)
	return common.HexToHash("0xabab"), nil
}

func (s *ethService) GetTransactionReceipt(ctx context.Context, hash common.Hash) (map[string]string, error) {
	return map[string]string{"status": "0x1"}, nil
}

func (s *ethService) sent() []txArgs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]txArgs(nil), s.txs...)
}

func loadABI(t *testing.T) abi.ABI {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "internal", "contract", "posts.abi.json"))
	if err != nil {
		t.Fatalf("open abi: %v", err)
	}
	defer f.Close()
	parsed, err := abi.JSON(f)
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return parsed
}

func newEthServer(t *testing.T, svc *ethService) string {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("eth", svc); err != nil {
		t.Fatalf("register eth service: %v", err)
	}
	srv := httptest.NewServer(server)
	t.Cleanup(func() {
		srv.Close()
		server.Stop()
	})
	return srv.URL
}

func TestPrintPosts_NewestFirst(t *testing.T) {
	var buf bytes.Buffer
	posts := []domain.Post{
		{ID: 1, Author: "0xAAAA00000000000000000000000000000001111", Content: "hi", Timestamp: 100, Likes: 2},
		{ID: 2, Author: "0xBBBB00000000000000000000000000000002222", Content: "yo", Timestamp: 200},
	}
	if err := printPosts(&buf, posts); err != nil {
		t.Fatalf("printPosts: %v", err)
	}

	out := buf.String()
	if strings.Index(out, "yo") > strings.Index(out, "hi") {
		t.Errorf("posts not newest first:\n%s", out)
	}
	if !strings.Contains(out, "0xBBBB...2222") {
		t.Errorf("author not shortened:\n%s", out)
	}
}

func TestRun_Journal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = j.Record(ctx, domain.WriteAttempt{
		Kind:    domain.WriteLike,
		Account: "0x1111111111111111111111111111111111111111",
		Author:  "0x2222222222222222222222222222222222222222",
		PostID:  9,
		Outcome: domain.OutcomeRejected,
		Error:   "rejected",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = j.Close()

	var buf bytes.Buffer
	if err := run([]string{"-journal", path, "journal"}, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "0x2222...2222#9") || !strings.Contains(out, "rejected") {
		t.Errorf("unexpected journal output:\n%s", out)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"no contract", []string{"-contract", "", "list"}},
		{"no provider", []string{"-contract", "0x564B404109F3d358f4B593020a438F27055F3367", "-rpc", "", "list"}},
		{"journal without path", []string{"-journal", "", "journal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WALLET_RPC_URL", "")
			t.Setenv("CONTRACT_ADDRESS", "")
			t.Setenv("JOURNAL_PATH", "")
			if err := run(tt.args, &bytes.Buffer{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRun_Commands(t *testing.T) {
	parsed := loadABI(t)
	posts, err := parsed.Methods["getAllPosts"].Outputs.Pack([]chainPost{
		{ID: big.NewInt(1), Author: common.HexToAddress(bob), Content: "hello chain", Timestamp: big.NewInt(100), Likes: big.NewInt(3)},
		{ID: big.NewInt(2), Author: common.HexToAddress(alice), Content: "newer post", Timestamp: big.NewInt(200)},
	})
	if err != nil {
		t.Fatalf("pack posts: %v", err)
	}

	tests := []struct {
		name    string
		args    []string
		reject  bool
		wantErr error
		wantOut []string
		journal *domain.WriteAttempt
		checkTx func(t *testing.T, tx txArgs)
	}{
		{
			name:    "list",
			args:    []string{"list"},
			wantOut: []string{"newer post", "hello chain"},
		},
		{
			name:    "post",
			args:    []string{"post", "gm", "chain"},
			wantOut: []string{"Posted as 0x1111...1111"},
			journal: &domain.WriteAttempt{Kind: domain.WritePost, Account: alice, Outcome: domain.OutcomeOK},
			checkTx: func(t *testing.T, tx txArgs) {
				in, err := parsed.Methods["createPost"].Inputs.Unpack(tx.Data[4:])
				if err != nil {
					t.Fatalf("unpack createPost: %v", err)
				}
				if in[0] != "gm chain" {
					t.Errorf("content = %v, want %q", in[0], "gm chain")
				}
			},
		},
		{
			name:    "like",
			args:    []string{"like", bob, "1"},
			wantOut: []string{"Liked post 1 by 0x2222...2222"},
			journal: &domain.WriteAttempt{Kind: domain.WriteLike, Account: alice, Author: bob, PostID: 1, Outcome: domain.OutcomeOK},
			checkTx: func(t *testing.T, tx txArgs) {
				in, err := parsed.Methods["likePost"].Inputs.Unpack(tx.Data[4:])
				if err != nil {
					t.Fatalf("unpack likePost: %v", err)
				}
				if in[0].(common.Address) != common.HexToAddress(bob) || in[1].(*big.Int).Uint64() != 1 {
					t.Errorf("likePost args = %v", in)
				}
			},
		},
		{
			name:    "post rejected",
			args:    []string{"post", "never sent"},
			reject:  true,
			wantErr: contract.ErrRejected,
			journal: &domain.WriteAttempt{Kind: domain.WritePost, Account: alice, Outcome: domain.OutcomeRejected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ethService{posts: posts, reject: tt.reject}
			url := newEthServer(t, svc)
			journalPath := filepath.Join(t.TempDir(), "journal.db")

			args := append([]string{"-rpc", url, "-contract", testContract, "-journal", journalPath}, tt.args...)
			var out bytes.Buffer
			err := run(args, &out)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("run error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("run: %v", err)
			}

			last := -1
			for _, want := range tt.wantOut {
				i := strings.Index(out.String(), want)
				if i < 0 {
					t.Fatalf("output missing %q:\n%s", want, out.String())
				}
				if i < last {
					t.Errorf("%q printed out of order:\n%s", want, out.String())
				}
				last = i
			}

			txs := svc.sent()
			if tt.checkTx != nil {
				if len(txs) != 1 {
					t.Fatalf("sent %d transactions, want 1", len(txs))
				}
				if txs[0].From == nil || *txs[0].From != common.HexToAddress(alice) {
					t.Errorf("tx from = %v, want %s", txs[0].From, alice)
				}
				if txs[0].To == nil || *txs[0].To != common.HexToAddress(testContract) {
					t.Errorf("tx to = %v, want %s", txs[0].To, testContract)
				}
				tt.checkTx(t, txs[0])
			} else if len(txs) != 0 {
				t.Errorf("sent %d transactions, want 0", len(txs))
			}

			j, err := journal.Open(context.Background(), journalPath)
			if err != nil {
				t.Fatalf("open journal: %v", err)
			}
			defer j.Close()
			entries, err := j.Recent(context.Background(), 10)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if tt.journal == nil {
				if len(entries) != 0 {
					t.Errorf("journal has %d entries, want 0", len(entries))
				}
				return
			}
			if len(entries) != 1 {
				t.Fatalf("journal has %d entries, want 1", len(entries))
			}
			got := entries[0]
			if got.Kind != tt.journal.Kind || got.Outcome != tt.journal.Outcome || got.PostID != tt.journal.PostID {
				t.Errorf("journal entry = %+v, want %+v", got, *tt.journal)
			}
			if !strings.EqualFold(string(got.Account), string(tt.journal.Account)) || !strings.EqualFold(string(got.Author), string(tt.journal.Author)) {
				t.Errorf("journal accounts = %s/%s, want %s/%s", got.Account, got.Author, tt.journal.Account, tt.journal.Author)
			}
		})
	}
}
