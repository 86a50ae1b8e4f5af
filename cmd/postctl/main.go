package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/blackmichael/onchain-posts/internal/chain"
	"github.com/blackmichael/onchain-posts/internal/contract"
	"github.com/blackmichael/onchain-posts/internal/domain"
	"github.com/blackmichael/onchain-posts/internal/journal"
	"github.com/blackmichael/onchain-posts/internal/render"
	"github.com/blackmichael/onchain-posts/internal/wallet"
)

const usage = `usage: postctl [flags] <command>

commands:
  list                 print all posts, newest first
  post <text>          create a post
  like <author> <id>   like a post
  journal              print recent write attempts from the journal

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var (
		rpcURL      string
		address     string
		abiPath     string
		journalPath string
		confirm     bool
		verbose     bool
	)

	fs := flag.NewFlagSet("postctl", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&rpcURL, "rpc", envOrDefault("WALLET_RPC_URL", ""), "wallet provider JSON-RPC endpoint")
	fs.StringVar(&address, "contract", envOrDefault("CONTRACT_ADDRESS", ""), "posts contract address")
	fs.StringVar(&abiPath, "abi", envOrDefault("CONTRACT_ABI_PATH", ""), "contract ABI descriptor (defaults to the embedded one)")
	fs.StringVar(&journalPath, "journal", envOrDefault("JOURNAL_PATH", ""), "SQLite write journal")
	fs.BoolVar(&confirm, "confirm", true, "wait for transaction receipts")
	fs.BoolVar(&verbose, "v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("a command is required")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if cmd == "journal" {
		return printJournal(ctx, stdout, journalPath)
	}

	if address == "" {
		return fmt.Errorf("--contract is required (or set CONTRACT_ADDRESS)")
	}

	rpcClient, err := chain.Dial(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("%w: pass --rpc or set WALLET_RPC_URL", err)
	}
	defer rpcClient.Close()

	var abiJSON []byte
	if abiPath != "" {
		if abiJSON, err = os.ReadFile(abiPath); err != nil {
			return fmt.Errorf("read abi: %w", err)
		}
	}

	client, err := contract.NewClient(rpcClient, contract.Options{
		Address: address,
		ABI:     abiJSON,
		Confirm: confirm,
	}, logger)
	if err != nil {
		return err
	}

	account, err := wallet.NewConnector(rpcClient, logger).Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect wallet: %w", err)
	}

	var recorder domain.Recorder = journal.Nop{}
	if journalPath != "" {
		j, err := journal.Open(ctx, journalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		recorder = j
	}

	switch cmd {
	case "list":
		posts, err := client.FetchAllPosts(ctx, account)
		if err != nil {
			return err
		}
		return printPosts(stdout, posts)

	case "post":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("post requires the post text")
		}
		content := strings.Join(cmdArgs, " ")
		err := client.SubmitPost(ctx, content, account)
		record(ctx, logger, recorder, domain.WriteAttempt{Kind: domain.WritePost, Account: account}, err)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Posted as %s\n", render.ShortAddress(string(account)))
		return nil

	case "like":
		if len(cmdArgs) != 2 {
			return fmt.Errorf("like requires <author> <id>")
		}
		id, err := strconv.ParseUint(cmdArgs[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid post id %q: %w", cmdArgs[1], err)
		}
		author := domain.Account(cmdArgs[0])
		err = client.SubmitLike(ctx, author, id, account)
		record(ctx, logger, recorder, domain.WriteAttempt{Kind: domain.WriteLike, Account: account, Author: author, PostID: id}, err)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Liked post %d by %s\n", id, render.ShortAddress(string(author)))
		return nil

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printPosts(w io.Writer, posts []domain.Post) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tTIME\tLIKES\tCONTENT")
	for _, p := range render.SortPosts(posts) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			p.ID,
			render.ShortAddress(string(p.Author)),
			time.Unix(p.Timestamp, 0).UTC().Format(time.RFC3339),
			p.Likes,
			p.Content,
		)
	}
	return tw.Flush()
}

func printJournal(ctx context.Context, w io.Writer, path string) error {
	if path == "" {
		return fmt.Errorf("--journal is required (or set JOURNAL_PATH)")
	}
	j, err := journal.Open(ctx, path)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(ctx, 50)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tACCOUNT\tPOST\tOUTCOME\tERROR")
	for _, e := range entries {
		post := "-"
		if e.Kind == domain.WriteLike {
			post = fmt.Sprintf("%s#%d", render.ShortAddress(string(e.Author)), e.PostID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.Format(time.RFC3339),
			e.Kind,
			render.ShortAddress(string(e.Account)),
			post,
			e.Outcome,
			e.Error,
		)
	}
	return tw.Flush()
}

func record(ctx context.Context, logger *slog.Logger, recorder domain.Recorder, attempt domain.WriteAttempt, err error) {
	if rerr := recorder.Record(ctx, journal.Complete(attempt, err)); rerr != nil {
		logger.Error("failed to journal write", "error", rerr)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
